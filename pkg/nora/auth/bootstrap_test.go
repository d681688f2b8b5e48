package auth

import (
	"testing"

	"github.com/norahq/nora/pkg/nora/models"
)

func TestEnsureAdminExistsCreatesStaffUser(t *testing.T) {
	db := setupTestDB(t)

	created, err := EnsureAdminExists(db, "Admin@Nora.Local", "changeme")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !created {
		t.Fatal("Expected the admin to be created")
	}

	user, err := Authenticate(db, "admin@nora.local", "changeme")
	if err != nil {
		t.Fatalf("Expected the admin to authenticate, got %v", err)
	}
	if !user.IsStaff {
		t.Error("Expected the admin to be staff")
	}
}

func TestEnsureAdminExistsKeepsExistingUsers(t *testing.T) {
	db := setupTestDB(t)
	db.Create(&models.User{Email: "cook@example.com", Name: "Cook"})

	created, err := EnsureAdminExists(db, "admin@nora.local", "changeme")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if created {
		t.Error("Expected no admin when a user exists")
	}

	var count int64
	db.Model(&models.User{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 user, got %d", count)
	}
}

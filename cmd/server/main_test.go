package main

import (
	"testing"

	"tokolaris/backend/internal/config"
)

func TestValidatePINStrength(t *testing.T) {
	weak := []string{"123456", "654321", "000000", "999999", "112233", "123123", "777777", "345678", "987654"}
	for _, pin := range weak {
		if err := validatePINStrength(pin); err == nil {
			t.Errorf("expected PIN %q to be rejected", pin)
		}
	}

	strong := []string{"847291", "392817", "560142"}
	for _, pin := range strong {
		if err := validatePINStrength(pin); err != nil {
			t.Errorf("expected PIN %q to be accepted, got %v", pin, err)
		}
	}
}

func TestValidateSecurityConfig(t *testing.T) {
	// No PIN disables sequence resets but is allowed.
	if err := validateSecurityConfig(config.Config{}); err != nil {
		t.Fatalf("expected empty PIN to be allowed, got %v", err)
	}

	if err := validateSecurityConfig(config.Config{ManagerPIN: "12"}); err == nil {
		t.Fatalf("expected short PIN to be rejected")
	}
	if err := validateSecurityConfig(config.Config{ManagerPIN: "111111"}); err == nil {
		t.Fatalf("expected weak PIN to be rejected")
	}
	if err := validateSecurityConfig(config.Config{ManagerPIN: "847291"}); err != nil {
		t.Fatalf("expected strong PIN to pass, got %v", err)
	}
}

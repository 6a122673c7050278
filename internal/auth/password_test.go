package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "s3cret" {
		t.Error("hash equals plain text")
	}
	if !CheckPassword("s3cret", hash) {
		t.Error("CheckPassword rejected the right password")
	}
	if CheckPassword("wrong", hash) {
		t.Error("CheckPassword accepted a wrong password")
	}
}

func TestHashPassword_TooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", 73))
	if !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("err = %v, want ErrPasswordTooLong", err)
	}
}

func TestCheckPassword_InvalidHash(t *testing.T) {
	if CheckPassword("s3cret", "not-a-bcrypt-hash") {
		t.Error("CheckPassword accepted an invalid hash")
	}
}

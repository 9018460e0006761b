package validator

import (
	"errors"
	"reflect"
	"testing"
)

func validRegister() RegisterPayload {
	return RegisterPayload{
		Username: "farmer", Name: "Farmer Joe", Email: "joe@example.com",
		Gender: "male", Location: "Pune", Password: "secret1", ConfirmPassword: "secret1",
	}
}

func TestRegisterPayload(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterPayload)
		want   []string
	}{
		{"valid", func(*RegisterPayload) {}, nil},
		{"short username", func(p *RegisterPayload) { p.Username = "ab" }, []string{"Username must be at least 3 characters"}},
		{"bad email", func(p *RegisterPayload) { p.Email = "joe@" }, []string{"Invalid email address"}},
		{"bad gender", func(p *RegisterPayload) { p.Gender = "robot" }, []string{"Gender is required"}},
		{"short password", func(p *RegisterPayload) { p.Password, p.ConfirmPassword = "123", "123" }, []string{"Password must be at least 6 characters"}},
		{"mismatch", func(p *RegisterPayload) { p.ConfirmPassword = "other1" }, []string{"Passwords do not match"}},
		{"missing location and name", func(p *RegisterPayload) { p.Location, p.Name = "", "" }, []string{"Name is required", "Location is required"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validRegister()
			tt.mutate(&p)
			err := p.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected validation error")
			}
			if got := Messages(err); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Messages = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCartPayloads(t *testing.T) {
	if err := (&AddToCartPayload{ProductID: 1, Quantity: 1}).Validate(); err != nil {
		t.Fatal(err)
	}
	if err := (&AddToCartPayload{ProductID: 1, Quantity: 0}).Validate(); err == nil {
		t.Fatal("zero quantity accepted")
	}
	if err := (&UpdateCartPayload{ProductID: 3, Quantity: 0}).Validate(); err != nil {
		t.Fatalf("update to zero rejected: %v", err)
	}
	if err := (&RemoveFromCartPayload{}).Validate(); err == nil {
		t.Fatal("missing product id accepted")
	}
	if err := (&NewProductPayload{Name: "Okra", Price: -1}).Validate(); err == nil {
		t.Fatal("negative price accepted")
	}
}

func TestOTPPayload(t *testing.T) {
	tests := []struct {
		otp  string
		want string
	}{
		{"123456", ""},
		{"654321", ""},
		{"", "Please enter the 6-digit OTP"},
		{"12345", "OTP must be 6 digits"},
		{"1234567", "OTP must be 6 digits"},
		{"12a456", "OTP must contain digits only"},
	}
	for _, tt := range tests {
		err := (&OTPPayload{OTP: tt.otp}).Validate()
		if tt.want == "" {
			if err != nil {
				t.Errorf("OTP %q rejected: %v", tt.otp, err)
			}
			continue
		}
		if err == nil {
			t.Errorf("OTP %q accepted", tt.otp)
			continue
		}
		if got := ValidationErrorResponse(err).Error(); got != tt.want {
			t.Errorf("OTP %q: message = %q, want %q", tt.otp, got, tt.want)
		}
	}
}

func TestValidationErrorResponse(t *testing.T) {
	err := (&LoginPayload{}).Validate()
	got := ValidationErrorResponse(err).Error()
	want := "Username is required\nPassword is required"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if msg := ValidationErrorResponse(errors.New("boom")).Error(); msg != "invalid validation error format" {
		t.Fatalf("non-validation error = %q", msg)
	}
}

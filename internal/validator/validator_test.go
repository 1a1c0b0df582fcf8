package validator_test

import (
	"errors"
	"testing"

	"github.com/garnizeh/skilltrials/internal/validator"
)

type item struct {
	ID int64 `json:"id" validate:"required,gt=0"`
}

type payload struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	Role     string   `json:"role" validate:"omitempty,oneof=company candidate"`
	Tags     []string `json:"tags" validate:"max=2"`
	Items    []item   `json:"items" validate:"dive"`
}

func TestValidate(t *testing.T) {
	v := validator.New()

	tests := []struct {
		name   string
		in     payload
		fields map[string]string
	}{
		{
			name: "valid",
			in:   payload{Email: "a@b.test", Password: "secret1", Role: "company"},
		},
		{
			name:   "missing email",
			in:     payload{Password: "secret1"},
			fields: map[string]string{"email": "is required"},
		},
		{
			name:   "bad email and short password",
			in:     payload{Email: "nope", Password: "x"},
			fields: map[string]string{"email": "must be a valid email address", "password": "must be at least 6 characters"},
		},
		{
			name:   "bad role",
			in:     payload{Email: "a@b.test", Password: "secret1", Role: "admin"},
			fields: map[string]string{"role": "must be one of [company candidate]"},
		},
		{
			name:   "too many tags",
			in:     payload{Email: "a@b.test", Password: "secret1", Tags: []string{"a", "b", "c"}},
			fields: map[string]string{"tags": "must contain at most 2 items"},
		},
		{
			name:   "nested item",
			in:     payload{Email: "a@b.test", Password: "secret1", Items: []item{{ID: 1}, {ID: 0}}},
			fields: map[string]string{"items[1].id": "is required"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.in)
			if len(tt.fields) == 0 {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			var verr *validator.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T %v", err, err)
			}
			if len(verr.Errors) != len(tt.fields) {
				t.Fatalf("expected %d field errors, got %v", len(tt.fields), verr.Errors)
			}
			for f, msg := range tt.fields {
				if verr.Errors[f] != msg {
					t.Fatalf("field %s: expected %q, got %q (all: %v)", f, msg, verr.Errors[f], verr.Errors)
				}
			}
		})
	}
}

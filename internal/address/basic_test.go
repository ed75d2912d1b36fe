package address

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validAddress() Address {
	return Address{
		FullName: "Ada Lovelace",
		Street:   "12 Analytical Way",
		City:     "London",
		State:    "Greater London",
		ZipCode:  "N1 9GU",
		Country:  "UK",
	}
}

func TestBasicValidator_Validate(t *testing.T) {
	tests := []struct {
		name       string
		modify     func(a *Address)
		wantValid  bool
		wantFields []string
	}{
		{
			name:      "complete address",
			modify:    func(a *Address) {},
			wantValid: true,
		},
		{
			name:      "phone is optional",
			modify:    func(a *Address) { a.Phone = "" },
			wantValid: true,
		},
		{
			name:       "missing street",
			modify:     func(a *Address) { a.Street = "" },
			wantFields: []string{"street"},
		},
		{
			name:       "whitespace only counts as missing",
			modify:     func(a *Address) { a.City = "   " },
			wantFields: []string{"city"},
		},
		{
			name: "several missing fields",
			modify: func(a *Address) {
				a.FullName = ""
				a.ZipCode = ""
				a.Country = ""
			},
			wantFields: []string{"fullName", "zipCode", "country"},
		},
	}

	v := NewBasicValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := validAddress()
			tt.modify(&addr)

			result, err := v.Validate(context.Background(), addr)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, result.IsValid)

			var fields []string
			for _, e := range result.Errors {
				fields = append(fields, e.Field)
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}

func TestBasicValidator_TrimsFields(t *testing.T) {
	addr := validAddress()
	addr.FullName = "  Ada Lovelace  "

	result, err := NewBasicValidator().Validate(context.Background(), addr)
	require.NoError(t, err)
	require.NotNil(t, result.NormalizedAddress)
	assert.Equal(t, "Ada Lovelace", result.NormalizedAddress.FullName)
}

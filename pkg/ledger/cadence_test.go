package ledger

import (
	"errors"
	"testing"
	"time"
)

func TestCadenceValidate(t *testing.T) {
	tests := []struct {
		name    string
		cadence Cadence
		wantErr bool
	}{
		{"valid monthly", Monthly(15), false},
		{"valid monthly day 31", Monthly(31), false},
		{"valid yearly", Yearly(time.March, 3), false},
		{"valid yearly feb 29", Yearly(time.February, 29), false},
		{"monthly day zero", Monthly(0), true},
		{"monthly day 32", Monthly(32), true},
		{"yearly month zero", Yearly(0, 10), true},
		{"yearly month 13", Yearly(13, 10), true},
		{"yearly dom zero", Yearly(time.May, 0), true},
		{"unknown frequency", Cadence{Frequency: "weekly", DueDay: 1}, true},
		{"monthly with yearly fields", Cadence{Frequency: FreqMonthly, DueDay: 5, DueMonth: time.March}, true},
		{"yearly with monthly field", Cadence{Frequency: FreqYearly, DueMonth: time.March, DueDOM: 3, DueDay: 5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cadence.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("Validate() error type = %T, want *ValidationError", err)
				}
			}
		})
	}
}

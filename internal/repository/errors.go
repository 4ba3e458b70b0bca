// Package repository implements MySQL persistence for users, refresh
// tokens, events and bookings. Domain sentinels live in the model
// package; this file only translates driver failures into them.
package repository

import (
	"fmt"
	"strings"

	"github.com/iliyamo/event-ticket-booking/internal/model"
)

// isDuplicateKey reports whether err is a MySQL duplicate-key violation
// (error 1062). Matching on the number in the message keeps the check
// free of driver-specific error types.
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}

// asTxConflict maps deadlocks (1213) and lock wait timeouts (1205) to
// model.ErrTxConflict so the service layer can rerun the whole unit of
// work against fresh reads. Anything else passes through unchanged.
func asTxConflict(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "Error 1213") || strings.Contains(msg, "Error 1205") {
		return fmt.Errorf("%w: %s", model.ErrTxConflict, msg)
	}
	return err
}

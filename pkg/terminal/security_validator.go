package terminal

import (
	"fmt"
	"unicode"
)

// ValidateSessionID prüft die Gültigkeit einer Session-ID
func ValidateSessionID(sessionID string) error {
	if len(sessionID) == 0 {
		return fmt.Errorf("session ID is empty")
	}

	if len(sessionID) > 128 {
		return fmt.Errorf("session ID too long")
	}

	// Nur alphanumerische Zeichen und Bindestriche erlauben
	for _, r := range sessionID {
		if r > unicode.MaxASCII || (!unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_') {
			return fmt.Errorf("session ID contains invalid characters")
		}
	}

	return nil
}

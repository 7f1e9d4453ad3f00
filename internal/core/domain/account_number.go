package domain

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// AccountNumberLength is the length of a canonical account number.
const AccountNumberLength = 16

// AccountNumberPrefix opens every generated account number.
const AccountNumberPrefix = "4200"

var accountNumberPattern = regexp.MustCompile(`^[0-9]{16}$`)

// Canonicalize strips separators (spaces and dashes) and validates that what
// remains is exactly 16 digits. The result is the only form used for lookups
// and equality.
func Canonicalize(raw string) (string, error) {
	clean := strings.ReplaceAll(raw, " ", "")
	clean = strings.ReplaceAll(clean, "-", "")
	clean = strings.TrimSpace(clean)

	if len(clean) != AccountNumberLength {
		return "", NewError(KindInvalidAccountNumber, "account number must be 16 digits")
	}
	if !accountNumberPattern.MatchString(clean) {
		return "", NewError(KindInvalidAccountNumber, "account number must contain digits only")
	}
	return clean, nil
}

// Display regroups a canonical number as XXXX-XXXX-XXXX-XXXX for
// presentation. Anything that is not 16 characters is returned unchanged.
func Display(accountNumber string) string {
	if len(accountNumber) != AccountNumberLength {
		return accountNumber
	}
	return accountNumber[0:4] + "-" + accountNumber[4:8] + "-" + accountNumber[8:12] + "-" + accountNumber[12:16]
}

// AccountNumberGenerator builds candidate numbers as prefix + clock digits +
// random digits. Uniqueness is the caller's job (see ledger.Accounts.Open).
type AccountNumberGenerator struct {
	Now  func() time.Time
	Rand io.Reader
}

// NewAccountNumberGenerator uses the wall clock and crypto/rand.
func NewAccountNumberGenerator() *AccountNumberGenerator {
	return &AccountNumberGenerator{Now: time.Now, Rand: rand.Reader}
}

// Four random digits in [1000, 9999].
var randomPartMax = big.NewInt(9_000)

// Generate returns a 16-digit candidate account number.
func (g *AccountNumberGenerator) Generate() (string, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	src := io.Reader(rand.Reader)
	if g.Rand != nil {
		src = g.Rand
	}

	// Eight digits from the middle of the nanosecond clock change fastest
	// without repeating within a day.
	ticks := strconv.FormatInt(now().UnixNano(), 10)
	for len(ticks) < 16 {
		ticks = "0" + ticks
	}
	clockPart := ticks[len(ticks)-16 : len(ticks)-8]

	n, err := rand.Int(src, randomPartMax)
	if err != nil {
		return "", fmt.Errorf("failed to generate random digits: %w", err)
	}
	randomPart := strconv.FormatInt(n.Int64()+1_000, 10)

	number := AccountNumberPrefix + clockPart + randomPart
	if len(number) > AccountNumberLength {
		number = number[:AccountNumberLength]
	}
	for len(number) < AccountNumberLength {
		number += "0"
	}
	return number, nil
}

// GenerateAccountNumber is a convenience wrapper around the default generator.
func GenerateAccountNumber() (string, error) {
	return NewAccountNumberGenerator().Generate()
}

package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var leadPrefixes = map[Category]string{
	CategoryCement:  "CEM",
	CategorySteel:   "STL",
	CategoryMixer:   "MIX",
	CategoryGeneral: "GEN",
}

// LeadPrefix returns the lead id prefix for a category.
func LeadPrefix(c Category) string {
	if p, ok := leadPrefixes[c]; ok {
		return p
	}
	return leadPrefixes[CategoryGeneral]
}

// NewLeadID builds a human readable, category prefixed order id such as CEM-261018-3FA2C1.
func NewLeadID(c Category, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s", LeadPrefix(c), now.UTC().Format("060102"), randomHex(6))
}

// NewInvoiceNumber builds the payment correlation key such as INV-202610-9C1D22AB.
func NewInvoiceNumber(now time.Time) string {
	return fmt.Sprintf("INV-%s-%s", now.UTC().Format("200601"), randomHex(8))
}

func randomHex(n int) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:n])
}

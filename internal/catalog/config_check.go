package catalog

import (
	"fmt"
	"strings"

	"github.com/noah-isme/toko-bundles/internal/bundle"
)

// ConfigurationError lists the problems that make a bundle unsellable.
type ConfigurationError struct {
	Code     string
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("bundle %s is misconfigured: %s", e.Code, strings.Join(e.Problems, "; "))
}

// CheckConfiguration validates a definition before it is stored or sold.
// A bundle without constituents is sellable through the fallback line and is
// reported as a warning only.
func CheckConfiguration(def bundle.Definition) (warnings []string, err error) {
	var problems []string
	if strings.TrimSpace(def.Code) == "" {
		problems = append(problems, "code is required")
	}
	if strings.TrimSpace(def.ContainerItem) == "" {
		problems = append(problems, "container item is required")
	}
	if !def.Price.IsPositive() {
		problems = append(problems, "bundle price must be greater than zero")
	}
	seen := make(map[string]struct{}, len(def.Constituents))
	for i, c := range def.Constituents {
		item := strings.TrimSpace(c.ItemCode)
		if item == "" {
			problems = append(problems, fmt.Sprintf("constituent %d has no item code", i+1))
			continue
		}
		if item == def.ContainerItem {
			problems = append(problems, fmt.Sprintf("constituent %s repeats the container item", item))
		}
		if !c.Qty.IsPositive() {
			problems = append(problems, fmt.Sprintf("constituent %s quantity must be greater than zero", item))
		}
		if c.RegularRate.IsNegative() {
			problems = append(problems, fmt.Sprintf("constituent %s rate cannot be negative", item))
		}
		if _, dup := seen[item]; dup {
			warnings = append(warnings, fmt.Sprintf("constituent %s is listed more than once", item))
		}
		seen[item] = struct{}{}
	}
	if len(def.Constituents) == 0 {
		warnings = append(warnings, "bundle has no constituents; orders will carry a fallback line")
	} else if len(problems) == 0 {
		total := bundle.Allocate(def.Constituents, 1, def.Price)
		if total.Required().IsNegative() {
			warnings = append(warnings, fmt.Sprintf("bundle price %s exceeds constituent total %s; children will not be discounted",
				def.Price.StringFixed(2), total.Original.StringFixed(2)))
		}
	}
	if len(problems) > 0 {
		return warnings, &ConfigurationError{Code: def.Code, Problems: problems}
	}
	return warnings, nil
}

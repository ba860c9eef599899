package catalog

import "strings"

const (
	carrierUSPS  = "usps"
	carrierFedEx = "fedex"
	carrierUPS   = "ups"
)

func carrierKey(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(normalized)

	switch normalized {
	case "usps", "unitedstatespostalservice":
		return carrierUSPS
	case "fedex", "federalexpress":
		return carrierFedEx
	case "ups", "unitedparcelservice":
		return carrierUPS
	default:
		return ""
	}
}

// NormalizeCarrierName canonicalizes known carriers and keeps custom ones untouched.
func NormalizeCarrierName(carrier string) string {
	trimmed := strings.TrimSpace(carrier)
	switch carrierKey(trimmed) {
	case carrierUSPS:
		return "USPS"
	case carrierFedEx:
		return "FedEx"
	case carrierUPS:
		return "UPS"
	default:
		return trimmed
	}
}

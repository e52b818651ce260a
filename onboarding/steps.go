package onboarding

const (
	StepCompany = 1
	StepContact = 2
	StepReview  = 3
)

// CompanyInfo is the payload of StepCompany.
type CompanyInfo struct {
	Country     string `json:"country"`
	CompanyType string `json:"company_type"`
	CompanyName string `json:"company_name"`
	TradeName   string `json:"trade_name,omitempty"`
}

// ContactInfo is the payload of StepContact.
type ContactInfo struct {
	TaxID   string  `json:"tax_id"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone"`
	Address Address `json:"address"`
}

type Address struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zipcode      string `json:"zipcode"`
}

// stepRules are validator map rules per step. Steps without an entry accept
// any payload.
var stepRules = map[int]map[string]interface{}{
	StepCompany: {
		"country":      "required",
		"company_type": "required",
		"company_name": "required",
	},
	StepContact: {
		"tax_id": "required",
		"email":  "required,email",
		"phone":  "required",
		"address": map[string]interface{}{
			"street":  "required",
			"number":  "required",
			"city":    "required",
			"state":   "required",
			"zipcode": "required",
		},
	},
}

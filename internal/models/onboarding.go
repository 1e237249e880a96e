package models

// Stage identifies the onboarding wizard position.
type Stage string

const (
	StageSignup   Stage = "signup"
	StageBusiness Stage = "business"
	StageAddress  Stage = "address"
	StageSelling  Stage = "selling"
	StageComplete Stage = "complete"
)

// Selling methods.
const (
	SellingHostedStore = "hosted_store"
	SellingIntegration = "integration"
)

// Draft is the accumulating onboarding form. A nil field has never been set.
type Draft struct {
	BusinessName     *string  `json:"businessName,omitempty"`
	Country          *string  `json:"country,omitempty"`
	FirstName        *string  `json:"firstName,omitempty"`
	LastName         *string  `json:"lastName,omitempty"`
	Line1            *string  `json:"line1,omitempty"`
	Line2            *string  `json:"line2,omitempty"`
	City             *string  `json:"city,omitempty"`
	State            *string  `json:"state,omitempty"`
	PostalCode       *string  `json:"postalCode,omitempty"`
	Phone            *string  `json:"phone,omitempty"`
	Timezone         *string  `json:"timezone,omitempty"`
	SellingMethod    *string  `json:"sellingMethod,omitempty"`
	IntegrationTypes []string `json:"integrationTypes,omitempty"`
}

// Progress is what the onboarding-storage key holds.
type Progress struct {
	Stage Stage `json:"stage"`
	Data  Draft `json:"data"`
}

// BusinessForm is the business step payload.
type BusinessForm struct {
	BusinessName string `json:"businessName" form:"businessName" validate:"min=2"`
	Country      string `json:"country" form:"country" validate:"oneof=US BR"`
	FirstName    string `json:"firstName" form:"firstName" validate:"min=2,alphaspace"`
	LastName     string `json:"lastName" form:"lastName" validate:"min=2,alphaspace"`
}

// AddressForm is the address step payload.
type AddressForm struct {
	Line1      string `json:"line1" form:"line1" validate:"min=5"`
	Line2      string `json:"line2,omitempty" form:"line2"`
	City       string `json:"city" form:"city" validate:"min=2"`
	State      string `json:"state" form:"state" validate:"required"`
	PostalCode string `json:"postalCode" form:"postalCode" validate:"required"`
	Phone      string `json:"phone" form:"phone" validate:"required"`
	Timezone   string `json:"timezone" form:"timezone" validate:"required"`
}

// SellingForm is the selling-method step payload.
type SellingForm struct {
	SellingMethod    string   `json:"sellingMethod" form:"sellingMethod" validate:"oneof=hosted_store integration"`
	IntegrationTypes []string `json:"integrationTypes" form:"integrationTypes"`
}

// Merge overlays every set field of partial onto d.
func (d Draft) Merge(partial Draft) Draft {
	out := d
	mergeString(&out.BusinessName, partial.BusinessName)
	mergeString(&out.Country, partial.Country)
	mergeString(&out.FirstName, partial.FirstName)
	mergeString(&out.LastName, partial.LastName)
	mergeString(&out.Line1, partial.Line1)
	mergeString(&out.Line2, partial.Line2)
	mergeString(&out.City, partial.City)
	mergeString(&out.State, partial.State)
	mergeString(&out.PostalCode, partial.PostalCode)
	mergeString(&out.Phone, partial.Phone)
	mergeString(&out.Timezone, partial.Timezone)
	mergeString(&out.SellingMethod, partial.SellingMethod)
	if partial.IntegrationTypes != nil {
		out.IntegrationTypes = append([]string{}, partial.IntegrationTypes...)
	}
	return out
}

// Has reports whether every named field holds a non-empty value.
func (d Draft) Has(fields ...string) bool {
	values := map[string]*string{
		"businessName": d.BusinessName,
		"country":      d.Country,
		"firstName":    d.FirstName,
		"lastName":     d.LastName,
		"line1":        d.Line1,
		"city":         d.City,
	}
	for _, field := range fields {
		v, ok := values[field]
		if !ok || v == nil || *v == "" {
			return false
		}
	}
	return true
}

// Draft converts the form into a draft with every field set.
func (f BusinessForm) Draft() Draft {
	return Draft{
		BusinessName: strPtr(f.BusinessName),
		Country:      strPtr(f.Country),
		FirstName:    strPtr(f.FirstName),
		LastName:     strPtr(f.LastName),
	}
}

// Draft converts the form into a draft with every field set.
func (f AddressForm) Draft() Draft {
	return Draft{
		Line1:      strPtr(f.Line1),
		Line2:      strPtr(f.Line2),
		City:       strPtr(f.City),
		State:      strPtr(f.State),
		PostalCode: strPtr(f.PostalCode),
		Phone:      strPtr(f.Phone),
		Timezone:   strPtr(f.Timezone),
	}
}

// Draft converts the form into a draft with every field set.
func (f SellingForm) Draft() Draft {
	types := f.IntegrationTypes
	if types == nil {
		types = []string{}
	}
	return Draft{
		SellingMethod:    strPtr(f.SellingMethod),
		IntegrationTypes: append([]string{}, types...),
	}
}

func mergeString(dst **string, src *string) {
	if src != nil {
		v := *src
		*dst = &v
	}
}

func strPtr(v string) *string {
	return &v
}

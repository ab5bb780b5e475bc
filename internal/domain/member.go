package domain

import "time"

// Member is the union worker that holds a credential. Dates are stored as YYYY-MM-DD strings.
type Member struct {
	ID                   string         `gorm:"primaryKey;size:36" json:"id"`
	FirstName            string         `gorm:"size:120;not null;index" json:"firstName"`
	LastName             string         `gorm:"size:120;not null;index" json:"lastName"`
	SecondLastName       *string        `gorm:"size:120" json:"secondLastName,omitempty"`
	DOB                  string         `gorm:"column:dob;size:10;not null" json:"dob"`
	Vigencia             *string        `gorm:"size:10" json:"vigencia,omitempty"`
	PhoneMX              string         `gorm:"column:phone_mx;size:10;not null" json:"phoneMx"`
	LicenseNumber        string         `gorm:"size:64;not null;index" json:"licenseNumber"`
	BadgeNumber          string         `gorm:"size:64;not null" json:"badgeNumber"`
	Folio                *string        `gorm:"size:16;uniqueIndex" json:"folio,omitempty"`
	PhotoPath            *string        `gorm:"size:255" json:"photoPath,omitempty"`
	SignaturePath        *string        `gorm:"size:255" json:"signaturePath,omitempty"`
	LastVigencyRenewalAt *time.Time     `json:"lastVigencyRenewalAt,omitempty"`
	Address              *Address       `gorm:"foreignKey:MemberID;constraint:OnDelete:CASCADE" json:"address,omitempty"`
	VigencyEvents        []VigencyEvent `gorm:"foreignKey:MemberID;constraint:OnDelete:CASCADE" json:"vigencyEvents,omitempty"`
	CreatedAt            time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt            time.Time      `json:"updatedAt"`
}

type Address struct {
	ID           uint    `gorm:"primaryKey" json:"-"`
	MemberID     string  `gorm:"size:36;uniqueIndex;not null" json:"-"`
	Street       string  `gorm:"size:200;not null" json:"street"`
	ExteriorNo   *string `gorm:"size:20" json:"exteriorNo,omitempty"`
	InteriorNo   *string `gorm:"size:20" json:"interiorNo,omitempty"`
	Neighborhood string  `gorm:"size:120;not null" json:"neighborhood"`
	City         string  `gorm:"size:120;not null" json:"city"`
	Municipality string  `gorm:"size:120;not null" json:"municipality"`
	State        string  `gorm:"size:120;not null" json:"state"`
	PostalCode   string  `gorm:"size:5;not null" json:"postalCode"`
	References   *string `gorm:"size:255" json:"references,omitempty"`
}

type VigencyEvent struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	MemberID  string    `gorm:"size:36;index;not null" json:"memberId"`
	Note      *string   `gorm:"size:500" json:"note,omitempty"`
	AppliedAt time.Time `gorm:"index;not null" json:"appliedAt"`
}

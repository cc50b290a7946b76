package models

// Ambassador is a commission-earning registrant recruited through the
// ambassador program.
type Ambassador struct {
	Base
	Name         string `gorm:"type:varchar(255);not null" json:"name"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone        string `gorm:"type:varchar(50)" json:"phone"`
	Occupation   string `gorm:"type:varchar(255)" json:"occupation"`
	ReferralCode string `gorm:"type:varchar(50);uniqueIndex" json:"referral_code"`
	Active       bool   `gorm:"not null;default:true" json:"active"`
}

// CampusGuide is a commission-earning registrant recruited through the
// campus guide program. Identical referral mechanics to Ambassador; only
// the registration metadata differs.
type CampusGuide struct {
	Base
	Name         string `gorm:"type:varchar(255);not null" json:"name"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone        string `gorm:"type:varchar(50)" json:"phone"`
	University   string `gorm:"type:varchar(255)" json:"university"`
	ReferralCode string `gorm:"type:varchar(50);uniqueIndex" json:"referral_code"`
	Active       bool   `gorm:"not null;default:true" json:"active"`
}

// StaffUser is an admin-surface login. Access is additionally gated by the
// configured staff email allow-list.
type StaffUser struct {
	Base
	Name     string `gorm:"type:varchar(255);not null" json:"name"`
	Email    string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Password string `gorm:"type:varchar(255);not null" json:"-"`
	IsAdmin  bool   `gorm:"not null;default:false" json:"is_admin"`
}

package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BeforeCreate assigns a public id.
func (s *Sanction) BeforeCreate(_ *gorm.DB) error {
	if s.PublicID == uuid.Nil {
		s.PublicID = uuid.New()
	}
	return nil
}

// BeforeCreate assigns a public id.
func (r *Report) BeforeCreate(_ *gorm.DB) error {
	if r.PublicID == uuid.Nil {
		r.PublicID = uuid.New()
	}
	if r.Status == "" {
		r.Status = ReportStatusOpen
	}
	return nil
}

// BeforeCreate assigns a public id.
func (n *Note) BeforeCreate(_ *gorm.DB) error {
	if n.PublicID == uuid.Nil {
		n.PublicID = uuid.New()
	}
	return nil
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReportTargetType names the kind of entity a report is about.
type ReportTargetType string

const (
	ReportTargetProduct ReportTargetType = "product"
	ReportTargetUser    ReportTargetType = "user"
	ReportTargetMessage ReportTargetType = "message"
	ReportTargetOther   ReportTargetType = "other"
	ReportTargetGeneral ReportTargetType = "general"
)

// ValidReportTargetType reports whether t is one of the known target types.
func ValidReportTargetType(t ReportTargetType) bool {
	switch t {
	case ReportTargetProduct, ReportTargetUser, ReportTargetMessage, ReportTargetOther, ReportTargetGeneral:
		return true
	}
	return false
}

// ReportStatus is the moderation state of a report.
type ReportStatus string

const (
	ReportStatusPending       ReportStatus = "pending"
	ReportStatusInvestigating ReportStatus = "investigating"
	ReportStatusResolved      ReportStatus = "resolved"
	ReportStatusDismissed     ReportStatus = "dismissed"
)

// ValidReportStatus reports whether s is one of the known report statuses.
func ValidReportStatus(s ReportStatus) bool {
	switch s {
	case ReportStatusPending, ReportStatusInvestigating, ReportStatusResolved, ReportStatusDismissed:
		return true
	}
	return false
}

// Report is a user-submitted complaint. A nil ReporterID means the report
// was filed anonymously. TargetID is nil only for "general" reports.
// Reports are never deleted; admins mutate status and notes only.
type Report struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	ReporterID  *primitive.ObjectID `bson:"reporter_id,omitempty" json:"reporter_id,omitempty"`
	TargetType  ReportTargetType    `bson:"target_type" json:"target_type"`
	TargetID    *primitive.ObjectID `bson:"target_id,omitempty" json:"target_id,omitempty"`
	Reason      string              `bson:"reason" json:"reason"`
	Description string              `bson:"description" json:"description"`
	Status      ReportStatus        `bson:"status" json:"status"`
	AdminNotes  string              `bson:"admin_notes" json:"admin_notes"`
	ReviewedBy  *primitive.ObjectID `bson:"reviewed_by,omitempty" json:"reviewed_by,omitempty"`
	CreatedAt   time.Time           `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time           `bson:"updated_at" json:"updated_at"`
}

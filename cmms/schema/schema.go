package schema

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleTechnician = "technician"
)

const (
	AssetActive  = "active"
	AssetDown    = "down"
	AssetRetired = "retired"
)

const (
	CriticalityLow    = "low"
	CriticalityMedium = "medium"
	CriticalityHigh   = "high"
)

const (
	WorkOrderOpen       = "open"
	WorkOrderAssigned   = "assigned"
	WorkOrderInProgress = "in_progress"
	WorkOrderOnHold     = "on_hold"
	WorkOrderCompleted  = "completed"
	WorkOrderCancelled  = "cancelled"
)

const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

const (
	TypeCorrective = "corrective"
	TypePreventive = "preventive"
	TypeInspection = "inspection"
)

const (
	HealthGood     = "good"
	HealthWatch    = "watch"
	HealthDegraded = "degraded"
	HealthCritical = "critical"
)

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

type User struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Username string `gorm:"unique;size:50;not null"`
	Email    string `gorm:"unique;size:254;not null"`
	Password []byte

	Role    string `gorm:"size:50;not null;default:'technician'"`
	IsAdmin bool   `gorm:"not null;default:false"`
	Active  bool   `gorm:"not null;default:true"`

	Teams []UserTeam `gorm:"constraint:OnDelete:CASCADE"`
}

type Team struct {
	Id   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name string    `gorm:"unique;size:100;not null"`
}

type UserTeam struct {
	UserId     uuid.UUID `gorm:"type:uuid;primaryKey"`
	TeamId     uuid.UUID `gorm:"type:uuid;primaryKey"`
	IsTeamLead bool      `gorm:"not null;default:false"`

	User *User `gorm:"constraint:OnDelete:CASCADE"`
	Team *Team `gorm:"constraint:OnDelete:CASCADE"`
}

type Asset struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name     string `gorm:"size:200;not null"`
	Tag      string `gorm:"unique;size:100;not null"`
	Category string `gorm:"size:100"`
	Location string `gorm:"size:200"`

	Status      string `gorm:"size:50;not null;default:'active'"`
	Criticality string `gorm:"size:50;not null;default:'medium'"`

	CommissionedAt    time.Time
	ExpectedLifeHours float64

	HealthScore float64 `gorm:"not null;default:100"`
	HealthBand  string  `gorm:"size:50;not null;default:'good'"`

	UserId uuid.UUID `gorm:"type:uuid;not null"`
	User   *User
}

type MeterReading struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	AssetId    uuid.UUID `gorm:"type:uuid;not null;index"`
	Reading    float64   `gorm:"not null"`
	RecordedAt time.Time `gorm:"not null"`

	UserId uuid.UUID `gorm:"type:uuid;not null"`

	Asset *Asset `gorm:"constraint:OnDelete:CASCADE"`
}

type WorkOrder struct {
	Id     uuid.UUID `gorm:"type:uuid;primaryKey"`
	Number int64     `gorm:"autoIncrement;uniqueIndex"`

	Title       string `gorm:"size:200;not null"`
	Description string

	Type     string `gorm:"size:50;not null"`
	Status   string `gorm:"size:50;not null;default:'open'"`
	Priority string `gorm:"size:50;not null;default:'medium'"`

	AssetId uuid.UUID `gorm:"type:uuid;not null;index"`
	Asset   *Asset

	TeamId *uuid.UUID `gorm:"type:uuid"`
	Team   *Team      `gorm:"constraint:OnDelete:SET NULL"`

	AssignedTo  *uuid.UUID `gorm:"type:uuid"`
	RequestedBy uuid.UUID  `gorm:"type:uuid;not null"`

	ScheduleId *uuid.UUID `gorm:"type:uuid;index"`

	DueDate     *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time

	Notes []WorkOrderNote `gorm:"constraint:OnDelete:CASCADE"`
	Parts []WorkOrderPart `gorm:"constraint:OnDelete:CASCADE"`
}

type WorkOrderNote struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	WorkOrderId uuid.UUID `gorm:"type:uuid;not null;index"`
	UserId      uuid.UUID `gorm:"type:uuid;not null"`

	Note      string `gorm:"not null"`
	CreatedAt time.Time

	User *User
}

type WorkOrderPart struct {
	WorkOrderId uuid.UUID `gorm:"type:uuid;primaryKey"`
	PartId      uuid.UUID `gorm:"type:uuid;primaryKey"`

	Quantity int `gorm:"not null"`

	WorkOrder *WorkOrder `gorm:"foreignKey:WorkOrderId"`
	Part      *Part      `gorm:"foreignKey:PartId"`
}

type Part struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name        string `gorm:"size:200;not null"`
	Sku         string `gorm:"unique;size:100;not null"`
	Description string

	Quantity    int     `gorm:"not null;default:0"`
	MinQuantity int     `gorm:"not null;default:0"`
	UnitCost    float64 `gorm:"not null;default:0"`
	Location    string  `gorm:"size:200"`
}

type StockAdjustment struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	PartId uuid.UUID `gorm:"type:uuid;not null;index"`
	Delta  int       `gorm:"not null"`
	Reason string    `gorm:"size:200;not null"`

	WorkOrderId *uuid.UUID `gorm:"type:uuid"`
	UserId      uuid.UUID  `gorm:"type:uuid;not null"`

	CreatedAt time.Time

	Part *Part `gorm:"constraint:OnDelete:CASCADE"`
}

type MaintenanceSchedule struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	AssetId uuid.UUID `gorm:"type:uuid;not null;index"`
	Asset   *Asset    `gorm:"constraint:OnDelete:CASCADE"`

	Title       string `gorm:"size:200;not null"`
	Description string
	Priority    string `gorm:"size:50;not null;default:'medium'"`

	IntervalDays    int `gorm:"not null"`
	LastGeneratedAt *time.Time
	NextDueAt       time.Time `gorm:"not null;index"`

	Active bool `gorm:"not null;default:true"`
}

type ChatMessage struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	SessionId uuid.UUID `gorm:"type:uuid;not null;index"`
	UserId    uuid.UUID `gorm:"type:uuid;not null"`

	Role    string `gorm:"size:20;not null"`
	Content string `gorm:"not null"`

	CreatedAt time.Time
}

type Attachment struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	WorkOrderId uuid.UUID `gorm:"type:uuid;not null;index"`
	Filename    string    `gorm:"size:300;not null"`
	Path        string    `gorm:"size:500;not null"`
	Size        int64     `gorm:"not null"`

	UploadedBy uuid.UUID `gorm:"type:uuid;not null"`
	CreatedAt  time.Time

	WorkOrder *WorkOrder `gorm:"constraint:OnDelete:CASCADE"`
}

func AllTables() []interface{} {
	return []interface{}{
		&User{}, &Team{}, &UserTeam{},
		&Asset{}, &MeterReading{},
		&WorkOrder{}, &WorkOrderNote{}, &WorkOrderPart{},
		&Part{}, &StockAdjustment{},
		&MaintenanceSchedule{}, &ChatMessage{}, &Attachment{},
	}
}

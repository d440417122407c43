package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/angelmondragon/stockroom/pkg/enums"
)

// ValidityCheck is an append-only audit row for one validation attempt.
type ValidityCheck struct {
	ID              uint64               `gorm:"column:id;primaryKey;autoIncrement"`
	ItemID          uint64               `gorm:"column:item_id;not null"`
	CheckDate       time.Time            `gorm:"column:check_date;autoCreateTime"`
	Result          enums.ValidityResult `gorm:"column:result;not null"`
	Score           float64              `gorm:"column:score;not null"`
	Method          string               `gorm:"column:method;not null;default:''"`
	Details         datatypes.JSON       `gorm:"column:details"`
	ExecutionTimeMs int64                `gorm:"column:execution_time_ms;not null;default:0"`
}

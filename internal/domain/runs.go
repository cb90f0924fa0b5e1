package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DecodingRun is the persisted run stamp: the reproducibility anchor written
// exactly once per completed evaluation run.
type DecodingRun struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Dataset string    `gorm:"column:dataset;not null;index" json:"dataset"`
	Task    string    `gorm:"column:task;not null;index" json:"task"`

	Seed            int64  `gorm:"column:seed;not null" json:"seed"`
	NSplits         int    `gorm:"column:n_splits;not null" json:"n_splits"`
	ThresholdPolicy string `gorm:"column:threshold_policy;not null" json:"threshold_policy"`

	NSubjects            int `gorm:"column:n_subjects;not null" json:"n_subjects"`
	NTrials              int `gorm:"column:n_trials;not null" json:"n_trials"`
	BaseGroupCount       int `gorm:"column:base_group_count;not null" json:"base_group_count"`
	NormalizedGroupCount int `gorm:"column:normalized_group_count;not null" json:"normalized_group_count"`

	MeanBalancedAccuracy     float64 `gorm:"column:mean_balanced_accuracy;not null" json:"mean_balanced_accuracy"`
	MinBalancedAccuracy      float64 `gorm:"column:min_balanced_accuracy;not null" json:"min_balanced_accuracy"`
	MaxBalancedAccuracy      float64 `gorm:"column:max_balanced_accuracy;not null" json:"max_balanced_accuracy"`
	ROCAUC                   float64 `gorm:"column:roc_auc;not null" json:"roc_auc"`
	BaselineBalancedAccuracy float64 `gorm:"column:baseline_balanced_accuracy;not null" json:"baseline_balanced_accuracy"`
	DeltaBalancedAccuracy    float64 `gorm:"column:delta_balanced_accuracy;not null" json:"delta_balanced_accuracy"`

	TrueNegatives  int `gorm:"column:true_negatives;not null" json:"true_negatives"`
	FalsePositives int `gorm:"column:false_positives;not null" json:"false_positives"`
	FalseNegatives int `gorm:"column:false_negatives;not null" json:"false_negatives"`
	TruePositives  int `gorm:"column:true_positives;not null" json:"true_positives"`

	ClassCounts datatypes.JSON `gorm:"column:class_counts" json:"class_counts"`
	BuildCounts datatypes.JSON `gorm:"column:build_counts" json:"build_counts"`
	FoldMetrics datatypes.JSON `gorm:"column:fold_metrics" json:"fold_metrics"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (DecodingRun) TableName() string { return "decoding_run" }

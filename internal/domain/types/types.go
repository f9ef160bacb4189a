// Package types contains common types used across the application
package types

import "github.com/okian/xscaffold/internal/domain/model"

// Assessment is the wire shape of a scored record.
type Assessment struct {
	StudentID string  `json:"student_id,omitempty"`
	Score     float64 `json:"learning_mastery_score"`
	Level     int     `json:"mastery_level"`
	LevelName string  `json:"mastery_level_name"`
}

// NewAssessment builds an Assessment from a score and its level.
func NewAssessment(studentID string, score float64, level model.MasteryLevel) Assessment {
	return Assessment{
		StudentID: studentID,
		Score:     score,
		Level:     int(level),
		LevelName: level.String(),
	}
}

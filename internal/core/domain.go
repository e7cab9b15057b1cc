package core

import (
	"errors"
)

type (
	// Project is a named collection that receipts are grouped under.
	Project struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		CreatedAt   string `json:"createdAt"`
	}

	// Receipt is a single submitted expense record with an attached image.
	// ProjectID is nullable: a receipt may be unassigned, or its project row
	// may no longer exist (there is no enforced cascade).
	Receipt struct {
		ID           int64   `json:"id"`
		ProjectID    *int64  `json:"projectId"`
		RoomNumber   string  `json:"roomNumber"`
		StudyLevel   string  `json:"studyLevel"`
		StudentID    string  `json:"studentId"`
		Amount       float64 `json:"amount"`
		TransferDate *string `json:"transferDate"`
		Notes        string  `json:"notes"`
		ImagePath    string  `json:"imagePath"`
		ProjectName  *string `json:"projectName"`
	}

	// ProjectSummary aggregates the receipts of one project. Total is nil
	// when the project has no receipts (SQL SUM over zero rows).
	ProjectSummary struct {
		Project string   `json:"project"`
		Count   int64    `json:"count"`
		Total   *float64 `json:"total"`
	}
)

var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrProjectExists    = errors.New("project name already exists")
	ErrEmptyProjectName = errors.New("project name is required")
	ErrNoReceiptImage   = errors.New("receipt image is required")
)

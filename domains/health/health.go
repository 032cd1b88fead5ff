package health

import "context"

type Status struct {
	Healthy  bool   `json:"healthy"`
	Database string `json:"database"`
	Version  string `json:"version"`
}

type IHealthUsecase interface {
	GetStatus(ctx context.Context) (Status, error)
}

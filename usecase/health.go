package usecase

import (
	"context"

	"gorm.io/gorm"

	"github.com/planconv/planconv/domains/health"
)

type healthUsecase struct {
	db      *gorm.DB
	version string
}

func NewHealthUsecase(db *gorm.DB, version string) health.IHealthUsecase {
	return &healthUsecase{db: db, version: version}
}

func (u *healthUsecase) GetStatus(ctx context.Context) (health.Status, error) {
	status := health.Status{
		Healthy:  true,
		Database: "ok",
		Version:  u.version,
	}

	sqlDB, err := u.db.DB()
	if err != nil {
		status.Healthy = false
		status.Database = err.Error()
		return status, nil
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		status.Healthy = false
		status.Database = err.Error()
	}
	return status, nil
}

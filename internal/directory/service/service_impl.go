package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/condoledger/internal/directory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Directory {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("directory.service"),
		repo: p.Repo,
	}
}

func (s *Service) GetResidency(ctx context.Context, id snowflake.ID) (*domain.Residency, error) {
	if id == 0 {
		return nil, domain.ErrInvalidResidencyID
	}
	residency, err := s.repo.FindResidency(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if residency == nil {
		return nil, domain.ErrResidencyNotFound
	}
	return residency, nil
}

// ActiveResidencyForResident returns the single active residency of a
// resident. More than one active residency is reported as an error state.
func (s *Service) ActiveResidencyForResident(ctx context.Context, residentID snowflake.ID) (*domain.Residency, error) {
	if residentID == 0 {
		return nil, domain.ErrInvalidResidentID
	}
	items, err := s.repo.ListActiveResidenciesForResident(ctx, s.db, residentID)
	if err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return nil, domain.ErrNoActiveResidency
	case 1:
		return &items[0], nil
	default:
		s.log.Warn("resident has more than one active residency",
			zap.String("resident_id", residentID.String()),
			zap.Int("count", len(items)),
		)
		return nil, domain.ErrAmbiguousResidency
	}
}

func (s *Service) ListActiveRentalResidencies(ctx context.Context) ([]domain.Residency, error) {
	return s.repo.ListActiveByContract(ctx, s.db, domain.ContractRental)
}

func (s *Service) GetUnit(ctx context.Context, id snowflake.ID) (*domain.Unit, error) {
	unit, err := s.repo.FindUnit(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, domain.ErrUnitNotFound
	}
	return unit, nil
}

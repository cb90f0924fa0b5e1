package runs

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/neurodecode/internal/domain"
	"github.com/yungbote/neurodecode/internal/pkg/dbctx"
	"github.com/yungbote/neurodecode/internal/pkg/logger"
)

type DecodingRunRepo interface {
	Create(dbc dbctx.Context, run *types.DecodingRun) (*types.DecodingRun, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DecodingRun, error)
	List(dbc dbctx.Context, dataset string, limit int) ([]*types.DecodingRun, error)
}

type decodingRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDecodingRunRepo(db *gorm.DB, baseLog *logger.Logger) DecodingRunRepo {
	return &decodingRunRepo{
		db:  db,
		log: baseLog.With("repo", "DecodingRunRepo"),
	}
}

func (r *decodingRunRepo) Create(dbc dbctx.Context, run *types.DecodingRun) (*types.DecodingRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if run == nil {
		return nil, errors.New("nil run")
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if err := transaction.WithContext(dbc.Ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *decodingRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.DecodingRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var run types.DecodingRun
	err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *decodingRunRepo) List(dbc dbctx.Context, dataset string, limit int) ([]*types.DecodingRun, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if limit <= 0 {
		limit = 50
	}
	q := transaction.WithContext(dbc.Ctx).
		Order("created_at DESC").
		Limit(limit)
	if dataset != "" {
		q = q.Where("dataset = ?", dataset)
	}
	var out []*types.DecodingRun
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

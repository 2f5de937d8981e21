package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/dataflow/internal/database"
	"github.com/BaSui01/dataflow/types"
)

// =============================================================================
// 📦 用户数据存储
// =============================================================================

// DefaultListLimit 列表查询的默认页大小
const DefaultListLimit = 100

// txMaxRetries 写事务在可重试错误（死锁、序列化失败等）下的最大重试次数
const txMaxRetries = 3

// UserData 用户数据记录
type UserData struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"size:255;not null;index" json:"name"`
	Email     string    `gorm:"size:255;not null" json:"email"`
	Message   string    `gorm:"type:text" json:"message"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (UserData) TableName() string {
	return "user_data"
}

// TxRunner 执行写事务。由连接池管理器实现时带重试，
// 裸 *gorm.DB 实现时单次执行。
type TxRunner interface {
	WithTransaction(ctx context.Context, fn database.TransactionFunc) error
}

// gormTxRunner 直接在 *gorm.DB 上开事务，不做重试
type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTransaction(ctx context.Context, fn database.TransactionFunc) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// retryTxRunner 通过连接池执行事务，可重试错误按指数退避重试
type retryTxRunner struct {
	pool *database.PoolManager
}

func (r retryTxRunner) WithTransaction(ctx context.Context, fn database.TransactionFunc) error {
	return r.pool.WithTransactionRetry(ctx, txMaxRetries, fn)
}

// Store 基于 GORM 的用户数据存储
type Store struct {
	db     *gorm.DB
	tx     TxRunner
	logger *zap.Logger
}

// NewStore 创建存储实例，事务单次执行
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		tx:     gormTxRunner{db: db},
		logger: logger.With(zap.String("component", "store")),
	}
}

// NewPooledStore 创建由连接池托管的存储实例，写事务带重试
func NewPooledStore(pool *database.PoolManager, logger *zap.Logger) *Store {
	return &Store{
		db:     pool.DB(),
		tx:     retryTxRunner{pool: pool},
		logger: logger.With(zap.String("component", "store")),
	}
}

// AutoMigrate 创建或更新数据表
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(&UserData{})
}

// =============================================================================
// 🎯 CRUD 操作
// =============================================================================

// Create 创建记录，成功后回填自增 ID
func (s *Store) Create(ctx context.Context, data *UserData) error {
	if err := s.db.WithContext(ctx).Create(data).Error; err != nil {
		s.logger.Error("failed to create record", zap.Error(err))
		return types.NewError(types.ErrStoreUnavailable, "failed to create record").WithCause(err)
	}

	s.logger.Debug("record created", zap.Uint("id", data.ID))
	return nil
}

// List 按主键升序返回一页记录。
// skip < 0 按 0 处理，limit < 1 按默认页大小处理。
func (s *Store) List(ctx context.Context, skip, limit int) ([]UserData, error) {
	if skip < 0 {
		skip = 0
	}
	if limit < 1 {
		limit = DefaultListLimit
	}

	var records []UserData
	err := s.db.WithContext(ctx).
		Order("id ASC").
		Offset(skip).
		Limit(limit).
		Find(&records).Error
	if err != nil {
		s.logger.Error("failed to list records", zap.Error(err))
		return nil, types.NewError(types.ErrStoreUnavailable, "failed to list records").WithCause(err)
	}

	return records, nil
}

// Get 按 ID 查询单条记录
func (s *Store) Get(ctx context.Context, id uint) (*UserData, error) {
	var record UserData
	err := s.db.WithContext(ctx).First(&record, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NewError(types.ErrNotFound, "item not found")
		}
		s.logger.Error("failed to get record", zap.Uint("id", id), zap.Error(err))
		return nil, types.NewError(types.ErrStoreUnavailable, "failed to get record").WithCause(err)
	}

	return &record, nil
}

// Update 整体覆盖指定记录的字段，返回更新后的记录
func (s *Store) Update(ctx context.Context, id uint, data *UserData) (*UserData, error) {
	var record UserData

	err := s.tx.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&record, id).Error; err != nil {
			return err
		}

		record.Name = data.Name
		record.Email = data.Email
		record.Message = data.Message

		return tx.Save(&record).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NewError(types.ErrNotFound, "item not found")
		}
		s.logger.Error("failed to update record", zap.Uint("id", id), zap.Error(err))
		return nil, types.NewError(types.ErrStoreUnavailable, "failed to update record").WithCause(err)
	}

	s.logger.Debug("record updated", zap.Uint("id", id))
	return &record, nil
}

// Delete 删除指定记录，返回被删除的记录内容
func (s *Store) Delete(ctx context.Context, id uint) (*UserData, error) {
	var record UserData

	err := s.tx.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.First(&record, id).Error; err != nil {
			return err
		}
		return tx.Delete(&UserData{}, id).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.NewError(types.ErrNotFound, "item not found")
		}
		s.logger.Error("failed to delete record", zap.Uint("id", id), zap.Error(err))
		return nil, types.NewError(types.ErrStoreUnavailable, "failed to delete record").WithCause(err)
	}

	s.logger.Debug("record deleted", zap.Uint("id", id))
	return &record, nil
}

// Count 返回记录总数
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserData{}).Count(&count).Error; err != nil {
		return 0, types.NewError(types.ErrStoreUnavailable, "failed to count records").WithCause(err)
	}
	return count, nil
}

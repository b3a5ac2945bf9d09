package store

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/roulette-backend/internal/settlement"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type gameRow struct {
	Id        uint64     `gorm:"primaryKey;autoIncrement:false"`
	Creator   string     `gorm:"index"`
	Status    string     `gorm:"index"`
	Players   string     `gorm:"index"`
	Record    []byte     `gorm:"not null"`
	State     model.Game `gorm:"serializer:json;not null"`
	UpdatedAt time.Time
}

func (gameRow) TableName() string {
	return "game"
}

type platformRow struct {
	Id        uint           `gorm:"primaryKey"`
	State     model.Platform `gorm:"serializer:json;not null"`
	UpdatedAt time.Time
}

func (platformRow) TableName() string {
	return "platform"
}

type balanceRow struct {
	Account   string          `gorm:"primaryKey"`
	Amount    decimal.Decimal `gorm:"type:numeric(20,0);not null"`
	UpdatedAt time.Time
}

func (balanceRow) TableName() string {
	return "balance"
}

const platformRowId = 1

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) AutoMigrate() error {
	return s.db.AutoMigrate(&gameRow{}, &platformRow{}, &balanceRow{})
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

type gormTx struct {
	db *gorm.DB
}

func (tx *gormTx) forUpdate() *gorm.DB {
	return tx.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (tx *gormTx) Game(id uint64) (*model.Game, error) {
	var row gameRow
	err := tx.forUpdate().Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, reject.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row.State, nil
}

func newGameRow(game *model.Game) (*gameRow, error) {
	record, err := game.MarshalBinary()
	if err != nil {
		return nil, err
	}
	players := make([]string, 0, model.MaxPlayers)
	for _, player := range game.Players() {
		players = append(players, player.Hex())
	}
	return &gameRow{
		Id:      game.Id,
		Creator: game.Creator.Hex(),
		Status:  game.Status.String(),
		Players: "|" + strings.Join(players, "|") + "|",
		Record:  record,
		State:   *game,
	}, nil
}

func (tx *gormTx) CreateGame(game *model.Game) error {
	row, err := newGameRow(game)
	if err != nil {
		return err
	}
	return tx.db.Create(row).Error
}

func (tx *gormTx) SaveGame(game *model.Game) error {
	row, err := newGameRow(game)
	if err != nil {
		return err
	}
	result := tx.db.Model(&gameRow{}).Where("id = ?", game.Id).Select("*").Updates(row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return reject.ErrGameNotFound
	}
	return nil
}

func (tx *gormTx) Games(filter GameFilter, page Page) ([]model.Game, int64, error) {
	query := tx.db.Model(&gameRow{})
	if filter.Status != nil {
		query = query.Where("status = ?", filter.Status.String())
	}
	if filter.Player != nil {
		query = query.Where("players LIKE ?", "%|"+filter.Player.Hex()+"|%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []gameRow
	query = query.Order("id DESC").Offset(page.Offset)
	if page.Limit > 0 {
		query = query.Limit(page.Limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	games := make([]model.Game, 0, len(rows))
	for _, row := range rows {
		games = append(games, row.State)
	}
	return games, total, nil
}

func (tx *gormTx) Platform() (*model.Platform, error) {
	var row platformRow
	err := tx.forUpdate().Where("id = ?", platformRowId).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, reject.ErrPlatformNotInitialized
	}
	if err != nil {
		return nil, err
	}
	return &row.State, nil
}

func (tx *gormTx) SavePlatform(platform *model.Platform) error {
	row := platformRow{Id: platformRowId, State: *platform}
	return tx.db.Save(&row).Error
}

func (tx *gormTx) loadBalance(account string) (*balanceRow, error) {
	var row balanceRow
	err := tx.forUpdate().Where("account = ?", account).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &balanceRow{Account: account, Amount: decimal.Zero}, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (tx *gormTx) Balance(account string) (uint64, error) {
	row, err := tx.loadBalance(account)
	if err != nil {
		return 0, err
	}
	return toUint64(row.Amount)
}

func (tx *gormTx) Credit(account string, amount uint64) error {
	row, err := tx.loadBalance(account)
	if err != nil {
		return err
	}
	current, err := toUint64(row.Amount)
	if err != nil {
		return err
	}
	next, err := settlement.Add(current, amount)
	if err != nil {
		return err
	}
	row.Amount = fromUint64(next)
	return tx.db.Save(row).Error
}

func (tx *gormTx) Debit(account string, amount uint64) error {
	row, err := tx.loadBalance(account)
	if err != nil {
		return err
	}
	current, err := toUint64(row.Amount)
	if err != nil {
		return err
	}
	if current < amount {
		return reject.ErrInsufficientFunds
	}
	row.Amount = fromUint64(current - amount)
	return tx.db.Save(row).Error
}

func fromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func toUint64(d decimal.Decimal) (uint64, error) {
	b := d.BigInt()
	if b.Sign() < 0 || !b.IsUint64() {
		return 0, reject.ErrArithmeticOverflow
	}
	return b.Uint64(), nil
}

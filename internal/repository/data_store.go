package repository

import (
	"context"

	"github.com/hitoshi/fanfootprint/internal/backend"
	"github.com/hitoshi/fanfootprint/internal/model"
)

// DataStore はプロフィールとスタジアムのリポジトリをまとめ、backend.DataStoreを実装する。
type DataStore struct {
	profiles ProfileRepository
	stadiums StadiumRepository
}

// NewDataStore はDataStoreを生成する。
func NewDataStore(profiles ProfileRepository, stadiums StadiumRepository) *DataStore {
	return &DataStore{profiles: profiles, stadiums: stadiums}
}

func (d *DataStore) FindProfile(ctx context.Context, userID string) (*model.Profile, error) {
	return d.profiles.FindByID(ctx, userID)
}

func (d *DataStore) InsertProfile(ctx context.Context, profile model.Profile) error {
	return d.profiles.Create(ctx, profile)
}

func (d *DataStore) ListStadiums(ctx context.Context, userID string) ([]model.Stadium, error) {
	return d.stadiums.ListByUserID(ctx, userID)
}

func (d *DataStore) InsertStadium(ctx context.Context, userID string, draft model.StadiumDraft) (*model.Stadium, error) {
	return d.stadiums.Create(ctx, userID, draft)
}

func (d *DataStore) UpdateStadium(ctx context.Context, userID, stadiumID string, update model.StadiumUpdate) (int64, error) {
	return d.stadiums.Update(ctx, userID, stadiumID, update)
}

func (d *DataStore) DeleteStadium(ctx context.Context, userID, stadiumID string) (int64, error) {
	return d.stadiums.Delete(ctx, userID, stadiumID)
}

// compile-time interface check
var _ backend.DataStore = (*DataStore)(nil)

package datastore

import (
	"time"

	"gorm.io/gorm/clause"
)

// UpsertPresence creates or refreshes the caller's presence row. One row
// per user for the lifetime of the process; heartbeats update in place.
func (ds *DataStore) UpsertPresence(p *Presence) error {
	err := ds.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"investigation_id", "status", "last_seen", "current_location",
		}),
	}).Create(p).Error
	if err != nil {
		return dbError(err, "upsert", "presence", p.UserID)
	}
	return nil
}

// GetPresence fetches the presence row for a user.
func (ds *DataStore) GetPresence(userID string) (*Presence, error) {
	var p Presence
	if err := ds.DB.First(&p, "user_id = ?", userID).Error; err != nil {
		return nil, dbError(err, "get", "presence", userID)
	}
	return &p, nil
}

// ListPresence returns all presence rows.
func (ds *DataStore) ListPresence() ([]Presence, error) {
	var presences []Presence
	if err := ds.DB.Order("user_id ASC").Find(&presences).Error; err != nil {
		return nil, dbError(err, "list", "presence", "")
	}
	return presences, nil
}

// MarkStalePresenceOffline transitions rows whose last_seen predates cutoff
// to offline. The WHERE clause re-checks last_seen at write time, so a
// sweep racing a concurrent heartbeat leaves the refreshed row alone.
func (ds *DataStore) MarkStalePresenceOffline(cutoff time.Time) (int64, error) {
	result := ds.DB.Model(&Presence{}).
		Where("last_seen < ? AND status <> ?", cutoff, PresenceOffline).
		Update("status", PresenceOffline)
	if result.Error != nil {
		return 0, dbError(result.Error, "sweep", "presence", "")
	}
	return result.RowsAffected, nil
}

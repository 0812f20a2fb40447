package datastore

import (
	"time"
)

// CreateInvestigation inserts a new investigation row.
func (ds *DataStore) CreateInvestigation(inv *Investigation) error {
	if err := ds.DB.Create(inv).Error; err != nil {
		return dbError(err, "create", "investigation", inv.ID)
	}
	return nil
}

// GetInvestigation fetches one investigation by id.
func (ds *DataStore) GetInvestigation(id string) (*Investigation, error) {
	var inv Investigation
	if err := ds.DB.First(&inv, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "get", "investigation", id)
	}
	return &inv, nil
}

// ListInvestigations returns investigations matching the filter, newest
// first. When filter.UserID is set, results are scoped to cases the user
// created, leads, or has joined.
func (ds *DataStore) ListInvestigations(filter *InvestigationFilter) ([]Investigation, error) {
	query := ds.DB.Model(&Investigation{})
	if filter != nil {
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.Priority != "" {
			query = query.Where("priority = ?", filter.Priority)
		}
		if filter.UserID != "" {
			query = query.Where(
				"created_by = ? OR lead_investigator = ? OR id IN (?)",
				filter.UserID, filter.UserID,
				ds.DB.Model(&Collaborator{}).Select("investigation_id").Where("user_id = ?", filter.UserID),
			)
		}
		if filter.Limit > 0 {
			query = query.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			query = query.Offset(filter.Offset)
		}
	}
	var investigations []Investigation
	if err := query.Order("created_at DESC").Find(&investigations).Error; err != nil {
		return nil, dbError(err, "list", "investigation", "")
	}
	return investigations, nil
}

// UpdateInvestigationGuarded applies updates only if updated_at still
// matches the caller's version token. Zero rows affected means the token
// was stale (or the row is gone); the service layer distinguishes the two.
func (ds *DataStore) UpdateInvestigationGuarded(id string, expectedUpdatedAt time.Time, updates map[string]any) (int64, error) {
	result := ds.DB.Model(&Investigation{}).
		Where("id = ? AND updated_at = ?", id, expectedUpdatedAt).
		Updates(updates)
	if result.Error != nil {
		return 0, dbError(result.Error, "update", "investigation", id)
	}
	return result.RowsAffected, nil
}

// DeleteInvestigation removes the investigation. Tasks, evidence, activity
// and collaborators cascade at the schema level; presence rows focused on
// it have investigation_id cleared.
func (ds *DataStore) DeleteInvestigation(id string) error {
	result := ds.DB.Delete(&Investigation{}, "id = ?", id)
	if result.Error != nil {
		return dbError(result.Error, "delete", "investigation", id)
	}
	if result.RowsAffected == 0 {
		return dbError(recordNotFound(), "delete", "investigation", id)
	}
	return nil
}

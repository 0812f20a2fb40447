package datastore

// CreateActivity appends one audit trail row. The store exposes no update
// or single-row delete for activities; rows only disappear through the
// investigation cascade.
func (ds *DataStore) CreateActivity(activity *Activity) error {
	if err := ds.DB.Create(activity).Error; err != nil {
		return dbError(err, "create", "activity", activity.ID)
	}
	return nil
}

// ListActivities returns the causal sequence for an investigation, oldest
// first. The (created_at, id) ordering gives a deterministic replay order
// even when two rows share a timestamp.
func (ds *DataStore) ListActivities(investigationID string, limit, offset int) ([]Activity, error) {
	query := ds.DB.Where("investigation_id = ?", investigationID).
		Order("created_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var activities []Activity
	if err := query.Find(&activities).Error; err != nil {
		return nil, dbError(err, "list", "activity", investigationID)
	}
	return activities, nil
}

// CountActivities returns the number of activity rows for an investigation.
func (ds *DataStore) CountActivities(investigationID string) (int64, error) {
	var count int64
	if err := ds.DB.Model(&Activity{}).
		Where("investigation_id = ?", investigationID).Count(&count).Error; err != nil {
		return 0, dbError(err, "count", "activity", investigationID)
	}
	return count, nil
}

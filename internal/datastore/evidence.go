package datastore

// CreateEvidence inserts a new evidence row. There is deliberately no
// update method for evidence anywhere in the store; the ledger is
// append-only and corrections are new rows.
func (ds *DataStore) CreateEvidence(item *EvidenceItem) error {
	if err := ds.DB.Create(item).Error; err != nil {
		return dbError(err, "create", "evidence", item.ID)
	}
	return nil
}

// GetEvidence fetches one evidence item by id.
func (ds *DataStore) GetEvidence(id string) (*EvidenceItem, error) {
	var item EvidenceItem
	if err := ds.DB.First(&item, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "get", "evidence", id)
	}
	return &item, nil
}

// ListEvidence returns evidence for an investigation in collection order,
// optionally narrowed by task and type.
func (ds *DataStore) ListEvidence(filter *EvidenceFilter) ([]EvidenceItem, error) {
	query := ds.DB.Where("investigation_id = ?", filter.InvestigationID)
	if filter.TaskID != "" {
		query = query.Where("task_id = ?", filter.TaskID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}
	var items []EvidenceItem
	if err := query.Order("collected_at ASC").Find(&items).Error; err != nil {
		return nil, dbError(err, "list", "evidence", filter.InvestigationID)
	}
	return items, nil
}

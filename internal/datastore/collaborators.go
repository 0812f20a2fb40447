package datastore

// CreateCollaborator inserts a membership row. The composite unique index
// on (investigation_id, user_id) rejects duplicate membership at the
// schema level; the service maps that onto already-member.
func (ds *DataStore) CreateCollaborator(c *Collaborator) error {
	if err := ds.DB.Create(c).Error; err != nil {
		return dbError(err, "create", "collaborator", c.ID)
	}
	return nil
}

// GetCollaborator fetches the membership row for (investigation, user).
func (ds *DataStore) GetCollaborator(investigationID, userID string) (*Collaborator, error) {
	var c Collaborator
	if err := ds.DB.First(&c, "investigation_id = ? AND user_id = ?", investigationID, userID).Error; err != nil {
		return nil, dbError(err, "get", "collaborator", investigationID)
	}
	return &c, nil
}

// ListCollaborators returns the members of an investigation in join order.
func (ds *DataStore) ListCollaborators(investigationID string) ([]Collaborator, error) {
	var collaborators []Collaborator
	if err := ds.DB.Where("investigation_id = ?", investigationID).
		Order("joined_at ASC").Find(&collaborators).Error; err != nil {
		return nil, dbError(err, "list", "collaborator", investigationID)
	}
	return collaborators, nil
}

// CountCollaborators returns the team size of an investigation.
func (ds *DataStore) CountCollaborators(investigationID string) (int64, error) {
	var count int64
	if err := ds.DB.Model(&Collaborator{}).
		Where("investigation_id = ?", investigationID).Count(&count).Error; err != nil {
		return 0, dbError(err, "count", "collaborator", investigationID)
	}
	return count, nil
}

// UpdateCollaboratorRole changes a member's role.
func (ds *DataStore) UpdateCollaboratorRole(investigationID, userID, role string) error {
	result := ds.DB.Model(&Collaborator{}).
		Where("investigation_id = ? AND user_id = ?", investigationID, userID).
		Update("role", role)
	if result.Error != nil {
		return dbError(result.Error, "update", "collaborator", investigationID)
	}
	if result.RowsAffected == 0 {
		return dbError(recordNotFound(), "update", "collaborator", investigationID)
	}
	return nil
}

// DeleteCollaborator removes a membership row.
func (ds *DataStore) DeleteCollaborator(investigationID, userID string) error {
	result := ds.DB.Where("investigation_id = ? AND user_id = ?", investigationID, userID).
		Delete(&Collaborator{})
	if result.Error != nil {
		return dbError(result.Error, "delete", "collaborator", investigationID)
	}
	if result.RowsAffected == 0 {
		return dbError(recordNotFound(), "delete", "collaborator", investigationID)
	}
	return nil
}

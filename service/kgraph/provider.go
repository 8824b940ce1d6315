/*
 * @module service/kgraph/provider
 * @description 知识图谱数据只读访问层，为校验引擎提供分批实体/关系扫描
 * @architecture 分层架构 - 数据访问层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 按主键排序分批拉取 -> 转换为统一目标记录 -> 交由执行器评估
 * @rules 通配符 * 表示扫描全部实体类型；批大小由调用方的规则配置决定
 * @dependencies gorm.io/gorm
 * @refs service/models/kgraph.go, service/validation/executor.go
 */

package kgraph

import (
	"context"

	"gorm.io/gorm"

	"vbkg-validation-service/service/models"
	"vbkg-validation-service/service/validation"
)

// Provider 知识图谱数据访问器
type Provider struct {
	db *gorm.DB
}

// NewProvider 创建知识图谱数据访问器
func NewProvider(db *gorm.DB) *Provider {
	return &Provider{db: db}
}

// CountEntities 统计目标实体类型的总数，包含 * 通配
func (p *Provider) CountEntities(ctx context.Context, entityTypes []string) (int64, error) {
	var total int64
	query := p.db.WithContext(ctx).Model(&models.KGEntity{})
	if !containsWildcard(entityTypes) {
		query = query.Where("entity_type IN ?", entityTypes)
	}
	if err := query.Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// FetchEntityBatch 按主键排序分批拉取实体
func (p *Provider) FetchEntityBatch(ctx context.Context, entityTypes []string, offset, limit int) ([]validation.TargetRecord, error) {
	var entities []models.KGEntity
	query := p.db.WithContext(ctx).Model(&models.KGEntity{})
	if !containsWildcard(entityTypes) {
		query = query.Where("entity_type IN ?", entityTypes)
	}
	if err := query.Order("id").Offset(offset).Limit(limit).Find(&entities).Error; err != nil {
		return nil, err
	}

	records := make([]validation.TargetRecord, 0, len(entities))
	for _, entity := range entities {
		records = append(records, entityToRecord(&entity))
	}
	return records, nil
}

// FetchRelationshipBatch 按主键排序分批拉取关系
func (p *Provider) FetchRelationshipBatch(ctx context.Context, relationshipTypes []string, offset, limit int) ([]validation.TargetRecord, error) {
	var relationships []models.KGRelationship
	query := p.db.WithContext(ctx).Model(&models.KGRelationship{})
	if len(relationshipTypes) > 0 && !containsWildcard(relationshipTypes) {
		query = query.Where("relationship_type IN ?", relationshipTypes)
	}
	if err := query.Order("id").Offset(offset).Limit(limit).Find(&relationships).Error; err != nil {
		return nil, err
	}

	records := make([]validation.TargetRecord, 0, len(relationships))
	for _, rel := range relationships {
		records = append(records, relationshipToRecord(&rel))
	}
	return records, nil
}

// EntityExists 检查实体是否存在，用于关系端点校验
func (p *Provider) EntityExists(ctx context.Context, entityID string) (bool, error) {
	if entityID == "" {
		return false, nil
	}
	var count int64
	if err := p.db.WithContext(ctx).Model(&models.KGEntity{}).
		Where("id = ?", entityID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// entityToRecord 实体转为统一目标记录
func entityToRecord(entity *models.KGEntity) validation.TargetRecord {
	props := make(map[string]interface{}, len(entity.Properties)+2)
	for k, v := range entity.Properties {
		props[k] = v
	}
	props["id"] = entity.ID
	if entity.Name != "" {
		props["name"] = entity.Name
	}
	return validation.TargetRecord{
		ID:         entity.ID,
		EntityType: entity.EntityType,
		Properties: props,
	}
}

// relationshipToRecord 关系转为统一目标记录
func relationshipToRecord(rel *models.KGRelationship) validation.TargetRecord {
	props := make(map[string]interface{}, len(rel.Properties)+3)
	for k, v := range rel.Properties {
		props[k] = v
	}
	props["id"] = rel.ID
	props["source_entity_id"] = rel.SourceEntityID
	props["target_entity_id"] = rel.TargetEntityID
	return validation.TargetRecord{
		ID:               rel.ID,
		IsRelationship:   true,
		RelationshipType: rel.RelationshipType,
		Properties:       props,
		SourceEntityID:   rel.SourceEntityID,
		TargetEntityID:   rel.TargetEntityID,
	}
}

func containsWildcard(types []string) bool {
	for _, t := range types {
		if t == "*" {
			return true
		}
	}
	return false
}

/*
 * @module service/kgraph/provider_test
 * @description 知识图谱数据访问层测试，覆盖分批拉取、通配符与端点存在性检查
 * @architecture 测试层
 * @documentReference ai_docs/validation_engine_req.md
 * @stateFlow 造数 -> 分批拉取 -> 记录转换验证
 * @rules 实体记录必须注入 id/name 属性，关系记录必须注入端点ID
 * @dependencies testing, github.com/stretchr/testify
 * @refs provider.go
 */

package kgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vbkg-validation-service/service/models"
	"vbkg-validation-service/testutil"
)

// TestCountAndFetchEntities 按类型统计与分批拉取
func TestCountAndFetchEntities(t *testing.T) {
	tdb := testutil.NewTestDB()
	provider := NewProvider(tdb.DB)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		tdb.CreateTestEntity("person", "人员", models.JSONB{"age": i})
	}
	tdb.CreateTestEntity("company", "公司", models.JSONB{})

	total, err := provider.CountEntities(ctx, []string{"person"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	total, err = provider.CountEntities(ctx, []string{"*"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)

	// 分两批拉完，批间无重叠
	first, err := provider.FetchEntityBatch(ctx, []string{"person"}, 0, 2)
	require.NoError(t, err)
	second, err := provider.FetchEntityBatch(ctx, []string{"person"}, 2, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Len(t, second, 1)

	seen := map[string]bool{}
	for _, record := range append(first, second...) {
		assert.Equal(t, "person", record.EntityType)
		assert.False(t, seen[record.ID])
		seen[record.ID] = true
	}
}

// TestEntityRecordInjectsBuiltins 实体记录注入 id 与 name 属性
func TestEntityRecordInjectsBuiltins(t *testing.T) {
	tdb := testutil.NewTestDB()
	provider := NewProvider(tdb.DB)

	entity := tdb.CreateTestEntity("person", "张三", models.JSONB{"email": "z@a.cn"})

	records, err := provider.FetchEntityBatch(context.Background(), []string{"person"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, entity.ID, records[0].Properties["id"])
	assert.Equal(t, "张三", records[0].Properties["name"])
	assert.Equal(t, "z@a.cn", records[0].Properties["email"])
}

// TestFetchRelationshipBatch 关系记录注入端点ID
func TestFetchRelationshipBatch(t *testing.T) {
	tdb := testutil.NewTestDB()
	provider := NewProvider(tdb.DB)
	ctx := context.Background()

	src := tdb.CreateTestEntity("person", "甲", models.JSONB{})
	dst := tdb.CreateTestEntity("company", "乙", models.JSONB{})
	rel := tdb.CreateTestRelationship("works_at", src.ID, dst.ID)
	tdb.CreateTestRelationship("knows", src.ID, dst.ID)

	records, err := provider.FetchRelationshipBatch(ctx, []string{"works_at"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.True(t, records[0].IsRelationship)
	assert.Equal(t, rel.ID, records[0].ID)
	assert.Equal(t, src.ID, records[0].Properties["source_entity_id"])
	assert.Equal(t, dst.ID, records[0].Properties["target_entity_id"])

	// 空类型列表等同于全量
	records, err = provider.FetchRelationshipBatch(ctx, nil, 0, 10)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

// TestEntityExists 端点存在性检查
func TestEntityExists(t *testing.T) {
	tdb := testutil.NewTestDB()
	provider := NewProvider(tdb.DB)
	ctx := context.Background()

	entity := tdb.CreateTestEntity("person", "丙", models.JSONB{})

	ok, err := provider.EntityExists(ctx, entity.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = provider.EntityExists(ctx, "missing-id")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = provider.EntityExists(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

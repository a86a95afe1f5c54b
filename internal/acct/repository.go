/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package acct

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Repository provides data access operations for Record entities.
// Repository 提供 Record 实体的数据访问操作。
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new Repository instance.
// NewRepository 创建一个新的 Repository 实例。
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a record.
// Create 插入一条记录。
func (r *Repository) Create(ctx context.Context, rec *Record) error {
	if rec.BootID == "" {
		return ErrBootIDEmpty
	}
	if rec.PID <= 0 {
		return ErrPIDInvalid
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

// GetByID retrieves a record by its ID.
// GetByID 通过 ID 获取记录。
// Returns ErrRecordNotFound if the record does not exist.
// 如果记录不存在，则返回 ErrRecordNotFound。
func (r *Repository) GetByID(ctx context.Context, id uint) (*Record, error) {
	var rec Record
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (r *Repository) filtered(ctx context.Context, filter *Filter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&Record{})
	if filter == nil {
		return query
	}
	if filter.BootID != "" {
		query = query.Where("boot_id = ?", filter.BootID)
	}
	if filter.PID != nil {
		query = query.Where("pid = ?", *filter.PID)
	}
	if filter.Comm != "" {
		query = query.Where("comm = ?", filter.Comm)
	}
	if filter.StartTime != nil {
		query = query.Where("exited_at >= ?", *filter.StartTime)
	}
	if filter.EndTime != nil {
		query = query.Where("exited_at <= ?", *filter.EndTime)
	}
	return query
}

// List retrieves records based on filter criteria with pagination, newest first.
// List 根据过滤条件和分页获取记录列表，按时间倒序。
// Returns the list of records and total count.
// 返回记录列表和总数。
func (r *Repository) List(ctx context.Context, filter *Filter) ([]*Record, int64, error) {
	query := r.filtered(ctx, filter)

	// Get total count - 获取总数
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Apply pagination - 应用分页
	if filter != nil && filter.PageSize > 0 {
		offset := 0
		if filter.Page > 0 {
			offset = (filter.Page - 1) * filter.PageSize
		}
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	var recs []*Record
	if err := query.Order("exited_at DESC").Order("id DESC").Find(&recs).Error; err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

// Count returns the number of records matching filter.
// Count 返回匹配过滤条件的记录数。
func (r *Repository) Count(ctx context.Context, filter *Filter) (int64, error) {
	var total int64
	err := r.filtered(ctx, filter).Count(&total).Error
	return total, err
}

// DeleteBefore removes records of processes that exited before t.
// DeleteBefore 删除在 t 之前退出的进程记录。
func (r *Repository) DeleteBefore(ctx context.Context, t time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("exited_at < ?", t).Delete(&Record{})
	return result.RowsAffected, result.Error
}

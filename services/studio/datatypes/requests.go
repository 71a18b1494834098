// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// CreateAppRequest is the body of POST /v1/apps.
type CreateAppRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	OwnerID string `json:"ownerId" validate:"required,excludes=:"`
}

// Validate validates the CreateAppRequest fields.
func (r *CreateAppRequest) Validate() error {
	return messageValidate.Struct(r)
}

// CreateUserRequest is the body of POST /v1/users.
type CreateUserRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"omitempty,email"`
}

// Validate validates the CreateUserRequest fields.
func (r *CreateUserRequest) Validate() error {
	return messageValidate.Struct(r)
}

// AddMemberRequest is the body of POST /v1/apps/:appId/members.
type AddMemberRequest struct {
	UserID string `json:"userId" validate:"required,excludes=:"`
	Role   string `json:"role" validate:"omitempty,oneof=owner editor viewer"`
}

// Validate validates the AddMemberRequest fields.
func (r *AddMemberRequest) Validate() error {
	return messageValidate.Struct(r)
}

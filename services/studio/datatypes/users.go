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

// User is the resolved identity bound to a session. Internal fields stay
// inside the service; clients only ever see the UserView projection.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

// UserView is the redacted public record of a user, safe to broadcast to
// every session of an app.
type UserView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// View returns the broadcast-safe projection of the user.
func (u User) View() *UserView {
	return &UserView{ID: u.ID, Name: u.Name}
}

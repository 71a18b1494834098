// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	userEmail string // Email for "users create"
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage studio users",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Register a user and print their bearer token",
	Long: `Creates a user on the studio service. The response includes the
generated bearer token once; it is not retrievable afterwards.`,
	Args: cobra.ExactArgs(1),
	Run:  runUsersCreate,
}

var usersGetCmd = &cobra.Command{
	Use:   "get [user-id]",
	Short: "Show one user",
	Args:  cobra.ExactArgs(1),
	Run:   runUsersGet,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete [user-id]",
	Short: "Delete a user and revoke its token",
	Args:  cobra.ExactArgs(1),
	Run:   runUsersDelete,
}

func init() {
	usersCreateCmd.Flags().StringVar(&userEmail, "email", "", "Email address")

	usersCmd.AddCommand(usersCreateCmd, usersGetCmd, usersDeleteCmd)
}

// =============================================================================
// COMMAND RUNNERS
// =============================================================================

func runUsersCreate(cmd *cobra.Command, args []string) {
	body, _ := json.Marshal(map[string]string{
		"name":  args[0],
		"email": userEmail,
	})
	resp, err := apiClient().Post(serverURL+"/v1/users", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Could not reach the studio service: %v", err)
	}
	defer resp.Body.Close()
	printResponse(resp, http.StatusCreated)
}

func runUsersGet(cmd *cobra.Command, args []string) {
	resp, err := apiClient().Get(serverURL + "/v1/users/" + args[0])
	if err != nil {
		log.Fatalf("Could not reach the studio service: %v", err)
	}
	defer resp.Body.Close()
	printResponse(resp, http.StatusOK)
}

func runUsersDelete(cmd *cobra.Command, args []string) {
	req, _ := http.NewRequest(http.MethodDelete, serverURL+"/v1/users/"+args[0], nil)
	resp, err := apiClient().Do(req)
	if err != nil {
		log.Fatalf("Could not reach the studio service: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		fmt.Println("deleted", args[0])
		return
	}
	printResponse(resp, http.StatusNoContent)
}

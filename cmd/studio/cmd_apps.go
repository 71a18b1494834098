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
	"io"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	appOwnerID     string // Owner for "apps create"
	memberUserID   string // User for "apps add-member"
	memberRole     string // Role for "apps add-member"
	appShowMembers bool   // Include members in "apps get"
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Manage studio apps",
}

var appsCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a new app",
	Long: `Creates an app on the studio service. The owner becomes a member
automatically and may attach websocket sessions immediately.`,
	Args: cobra.ExactArgs(1),
	Run:  runAppsCreate,
}

var appsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all apps",
	Run:   runAppsList,
}

var appsGetCmd = &cobra.Command{
	Use:   "get [app-id]",
	Short: "Show one app, including its persisted code content",
	Args:  cobra.ExactArgs(1),
	Run:   runAppsGet,
}

var appsDeleteCmd = &cobra.Command{
	Use:   "delete [app-id]",
	Short: "Delete an app and its membership records",
	Args:  cobra.ExactArgs(1),
	Run:   runAppsDelete,
}

var appsAddMemberCmd = &cobra.Command{
	Use:   "add-member [app-id]",
	Short: "Grant a user access to an app",
	Args:  cobra.ExactArgs(1),
	Run:   runAppsAddMember,
}

func init() {
	appsCreateCmd.Flags().StringVar(&appOwnerID, "owner", "local-user", "Owner user ID")
	appsGetCmd.Flags().BoolVar(&appShowMembers, "members", false, "Also list members")
	appsAddMemberCmd.Flags().StringVar(&memberUserID, "user", "", "User ID to add (required)")
	appsAddMemberCmd.Flags().StringVar(&memberRole, "role", "editor", "Role: owner, editor, or viewer")
	_ = appsAddMemberCmd.MarkFlagRequired("user")

	appsCmd.AddCommand(appsCreateCmd, appsListCmd, appsGetCmd, appsDeleteCmd, appsAddMemberCmd)
}

// =============================================================================
// COMMAND RUNNERS
// =============================================================================

func apiClient() *http.Client {
	return &http.Client{Timeout: 15 * time.Second}
}

func runAppsCreate(cmd *cobra.Command, args []string) {
	body, _ := json.Marshal(map[string]string{
		"name":    args[0],
		"ownerId": appOwnerID,
	})
	resp, err := apiClient().Post(serverURL+"/v1/apps", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Could not reach the studio service: %v", err)
	}
	defer resp.Body.Close()
	printResponse(resp, http.StatusCreated)
}

func runAppsList(cmd *cobra.Command, args []string) {
	resp, err := apiClient().Get(serverURL + "/v1/apps")
	if err != nil {
		log.Fatalf("Could not reach the studio service: %v", err)
	}
	defer resp.Body.Close()
	printResponse(resp, http.StatusOK)
}

func runAppsGet(cmd *cobra.Command, args []string) {
	resp, err := apiClient().Get(serverURL + "/v1/apps/" + args[0])
	if err != nil {
		log.Fatalf("Could not reach the studio service: %v", err)
	}
	defer resp.Body.Close()
	printResponse(resp, http.StatusOK)

	if appShowMembers {
		mresp, err := apiClient().Get(serverURL + "/v1/apps/" + args[0] + "/members")
		if err != nil {
			log.Fatalf("Could not reach the studio service: %v", err)
		}
		defer mresp.Body.Close()
		printResponse(mresp, http.StatusOK)
	}
}

func runAppsDelete(cmd *cobra.Command, args []string) {
	req, _ := http.NewRequest(http.MethodDelete, serverURL+"/v1/apps/"+args[0], nil)
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

func runAppsAddMember(cmd *cobra.Command, args []string) {
	body, _ := json.Marshal(map[string]string{
		"userId": memberUserID,
		"role":   memberRole,
	})
	resp, err := apiClient().Post(serverURL+"/v1/apps/"+args[0]+"/members",
		"application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Could not reach the studio service: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNoContent {
		fmt.Printf("added %s to %s as %s\n", memberUserID, args[0], memberRole)
		return
	}
	printResponse(resp, http.StatusNoContent)
}

// printResponse pretty-prints the body and exits non-zero on an
// unexpected status.
func printResponse(resp *http.Response, want int) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Could not read response: %v", err)
	}
	var pretty bytes.Buffer
	if len(data) > 0 && json.Indent(&pretty, data, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else if len(data) > 0 {
		fmt.Println(string(data))
	}
	if resp.StatusCode != want {
		log.Fatalf("Unexpected status from studio service: %s", resp.Status)
	}
}

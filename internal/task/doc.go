// Package task defines the task record, its enums and the error taxonomy
// shared by the store and its collaborators.
//
// A Task belongs to a forest: ParentTaskID names its parent, and tasks sharing
// a parent (or sharing no parent) form a sibling group ordered by SortOrder.
// The record itself carries no behavior beyond field validation; hierarchy
// rules need the whole collection and are enforced by package store.
//
// # Status Values
//
//   - "pending": not started
//   - "in_progress": being worked on
//   - "completed": done (the store sets progress to 100 on explicit completion)
//   - "cancelled": abandoned
//
// # Priority Order
//
// Priorities are totally ordered low < medium < high < today. Cycling a
// priority advances one step and wraps today back to low.
//
// # Document Format
//
// The JSON document used by the file backend and the JSON exporter is
//
//	{
//	  "schema_version": 1,
//	  "tasks": [
//	    {
//	      "id": "7d4c…",
//	      "title": "Write report",
//	      "status": "pending",
//	      "priority": "high",
//	      "progress": 0,
//	      "due_date": "2026-10-15T00:00:00Z",
//	      "sort_order": 100,
//	      "created_at": "2026-10-14T09:00:00Z",
//	      "updated_at": "2026-10-14T09:00:00Z"
//	    }
//	  ]
//	}
//
// Documents are validated against DocumentSchema when decoded and written
// with 2-space indentation and a trailing newline.
package task

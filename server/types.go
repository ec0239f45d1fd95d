package server

import (
	"context"
	"time"

	"github.com/conductorhq/conductor/mission"
)

// MissionReader is the subset of store.MissionStore the Mission Control API
// needs: list/get for status endpoints, a status flip for pause/cancel.
// Kept as an interface (mirrors mission.Store/mission.Memory) so handlers
// can be exercised with a fake store in tests.
type MissionReader interface {
	GetMission(ctx context.Context, id string) (*mission.Def, error)
	ListMissions(ctx context.Context, projectID string) ([]*mission.Def, error)
	UpdateStatus(ctx context.Context, id string, status mission.Status) error
}

// startMissionRequest is the POST /missions request body.
type startMissionRequest struct {
	ProjectID  string `json:"project_id"`
	Name       string `json:"name"`
	Brief      string `json:"brief"`
	WorkflowID string `json:"workflow_id"`
}

// missionResponse is the JSON shape returned for one mission, both from
// POST /missions and GET /missions.
type missionResponse struct {
	ID                 string          `json:"id"`
	ProjectID          string          `json:"project_id"`
	Name               string          `json:"name"`
	Brief              string          `json:"brief"`
	Status             mission.Status  `json:"status"`
	WorkflowID         string          `json:"workflow_id"`
	CurrentPhase       int             `json:"current_phase"`
	Phases             []phaseResponse `json:"phases"`
	WorkspacePath      string          `json:"workspace_path,omitempty"`
	HumanInputRequired bool            `json:"human_input_required"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type phaseResponse struct {
	PhaseID     string              `json:"phase_id"`
	Status      mission.PhaseStatus `json:"status"`
	AgentCount  int                 `json:"agent_count"`
	Summary     string              `json:"summary,omitempty"`
	StartedAt   time.Time           `json:"started_at,omitempty"`
	CompletedAt time.Time           `json:"completed_at,omitempty"`
}

func toMissionResponse(m *mission.Def) missionResponse {
	phases := make([]phaseResponse, 0, len(m.Phases))
	for _, p := range m.Phases {
		phases = append(phases, phaseResponse{
			PhaseID:     p.PhaseID,
			Status:      p.Status,
			AgentCount:  p.AgentCount,
			Summary:     p.Summary,
			StartedAt:   p.StartedAt,
			CompletedAt: p.CompletedAt,
		})
	}
	return missionResponse{
		ID:                 m.ID,
		ProjectID:          m.ProjectID,
		Name:               m.Name,
		Brief:              m.Brief,
		Status:             m.Status,
		WorkflowID:         m.WorkflowID,
		CurrentPhase:       m.CurrentPhase,
		Phases:             phases,
		WorkspacePath:      m.WorkspacePath,
		HumanInputRequired: m.HumanInputRequired,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

// errorResponse is the JSON body every non-2xx response carries.
type errorResponse struct {
	Error string `json:"error"`
}

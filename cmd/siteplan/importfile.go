package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aristath/siteplan/internal/calendar"
	"github.com/aristath/siteplan/internal/persistence"
	"github.com/aristath/siteplan/internal/scheduler"
)

// importFile is the JSON document accepted by "siteplan import".
type importFile struct {
	Project struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"project"`
	Phases       []importPhase      `json:"phases"`
	Tasks        []importTask       `json:"tasks"`
	Dependencies []importDependency `json:"dependencies"`
}

type importPhase struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Order           int    `json:"order"`
	DependencyGroup string `json:"dependency_group"`
	Type            string `json:"type"`
}

type importTask struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Start      string   `json:"start"` // YYYY-MM-DD
	End        string   `json:"end"`   // YYYY-MM-DD
	Progress   float64  `json:"progress"`
	Status     string   `json:"status"`
	PhaseID    string   `json:"phase_id"`
	Contractor string   `json:"contractor"`
	Assignees  []string `json:"assignees"`
}

type importDependency struct {
	ID   string `json:"id"` // Generated when empty
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"` // FS, SS, FF or SF; FS when empty
	Lag  int    `json:"lag"`
}

// readImportFile parses and validates an import document.
func readImportFile(path string) (persistence.ProjectData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return persistence.ProjectData{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var f importFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return persistence.ProjectData{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return f.toProjectData()
}

func (f importFile) toProjectData() (persistence.ProjectData, error) {
	data := persistence.ProjectData{
		Project: persistence.Project{ID: f.Project.ID, Name: f.Project.Name},
	}
	if data.Project.ID == "" {
		return data, fmt.Errorf("project.id is required")
	}
	if data.Project.Name == "" {
		data.Project.Name = data.Project.ID
	}

	phases := make(map[string]bool, len(f.Phases))
	for _, p := range f.Phases {
		if p.ID == "" {
			return data, fmt.Errorf("phase without id")
		}
		phases[p.ID] = true
		data.Phases = append(data.Phases, scheduler.Phase{
			ID:              p.ID,
			Name:            p.Name,
			Order:           p.Order,
			DependencyGroup: p.DependencyGroup,
			Type:            p.Type,
		})
	}

	seen := make(map[string]bool, len(f.Tasks))
	for _, it := range f.Tasks {
		t, err := it.toTask()
		if err != nil {
			return data, err
		}
		if seen[t.ID] {
			return data, fmt.Errorf("duplicate task id %q", t.ID)
		}
		if t.PhaseID != "" && !phases[t.PhaseID] {
			return data, fmt.Errorf("task %s: unknown phase %q", t.ID, t.PhaseID)
		}
		seen[t.ID] = true
		data.Tasks = append(data.Tasks, t)
	}

	var deps []scheduler.Dependency
	for _, d := range f.Dependencies {
		if !seen[d.From] || !seen[d.To] {
			return data, fmt.Errorf("dependency %s -> %s references an unknown task", d.From, d.To)
		}
		typ, err := scheduler.ParseDependencyType(d.Type)
		if err != nil {
			return data, fmt.Errorf("dependency %s -> %s: %w", d.From, d.To, err)
		}
		deps = append(deps, scheduler.Dependency{ID: d.ID, FromTaskID: d.From, ToTaskID: d.To, Type: typ, LagDays: d.Lag})
	}

	// The graph fills in missing IDs and refuses duplicates and cycles
	graph := scheduler.NewDependencyGraph(deps...)
	if rejected := len(deps) - graph.Len(); rejected > 0 {
		return data, fmt.Errorf("%d dependencies rejected (duplicate pair, duplicate id or cycle)", rejected)
	}
	ids := make([]string, len(data.Tasks))
	for i, t := range data.Tasks {
		ids[i] = t.ID
	}
	if _, err := graph.Order(ids); err != nil {
		return data, err
	}
	data.Dependencies = graph.Dependencies()
	return data, nil
}

func (it importTask) toTask() (scheduler.Task, error) {
	if it.ID == "" {
		return scheduler.Task{}, fmt.Errorf("task without id")
	}
	start, err := calendar.Parse(it.Start)
	if err != nil {
		return scheduler.Task{}, fmt.Errorf("task %s start: %w", it.ID, err)
	}
	end, err := calendar.Parse(it.End)
	if err != nil {
		return scheduler.Task{}, fmt.Errorf("task %s end: %w", it.ID, err)
	}
	if end.Before(start) {
		return scheduler.Task{}, fmt.Errorf("task %s ends before it starts", it.ID)
	}

	name := it.Name
	if name == "" {
		name = it.ID
	}
	t := scheduler.NewTask(it.ID, name, start, end)
	if it.Status != "" {
		t.Status = scheduler.TaskStatus(it.Status)
		if !t.Status.IsValid() {
			return scheduler.Task{}, fmt.Errorf("task %s: invalid status %q", it.ID, it.Status)
		}
	}
	if it.Progress < 0 || it.Progress > 1 {
		return scheduler.Task{}, fmt.Errorf("task %s: progress must be between 0 and 1", it.ID)
	}
	t.Progress = it.Progress
	t.PhaseID = it.PhaseID
	t.ContractorName = it.Contractor
	t.Assignees = it.Assignees
	return t, nil
}

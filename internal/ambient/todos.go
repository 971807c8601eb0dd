package ambient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

const todoistAPIBase = "https://api.todoist.com/rest/v2"

// TodoistConfig selects which Todoist projects appear and in what order.
type TodoistConfig struct {
	Token string `yaml:"token"`

	// Projects are matched case-insensitively against the Todoist project
	// name; display order follows this slice.
	Projects []TodoistProject `yaml:"projects"`
}

// TodoistProject pairs a display name with the substring that selects
// the matching Todoist project.
type TodoistProject struct {
	Display string `yaml:"display"`
	Match   string `yaml:"match"`
}

type todoistProject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type todoistTask struct {
	Content   string `json:"content"`
	ProjectID string `json:"project_id"`
	Priority  int    `json:"priority"` // 4 is most urgent
}

// FetchTodos reads open tasks from the Todoist REST API and formats
// them grouped by project, highest priority first.
func FetchTodos(ctx context.Context, client *http.Client, cfg TodoistConfig) (string, error) {
	if cfg.Token == "" {
		return "", fmt.Errorf("ambient: todoist token not configured")
	}
	if client == nil {
		client = http.DefaultClient
	}

	var projects []todoistProject
	if err := todoistGet(ctx, client, cfg.Token, "/projects", &projects); err != nil {
		return "", err
	}

	display := make(map[string]string, len(projects))
	for _, p := range projects {
		for _, want := range cfg.Projects {
			if strings.Contains(strings.ToLower(p.Name), strings.ToLower(want.Match)) {
				display[p.ID] = want.Display
				break
			}
		}
	}

	var tasks []todoistTask
	if err := todoistGet(ctx, client, cfg.Token, "/tasks", &tasks); err != nil {
		return "", err
	}

	return formatTodos(tasks, display, cfg.Projects), nil
}

func todoistGet(ctx context.Context, client *http.Client, token, endpoint string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, todoistAPIBase+endpoint, nil)
	if err != nil {
		return fmt.Errorf("ambient: build todoist request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("ambient: fetch todoist %s: %w", endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ambient: todoist %s returned %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ambient: decode todoist %s: %w", endpoint, err)
	}
	return nil
}

func formatTodos(tasks []todoistTask, display map[string]string, order []TodoistProject) string {
	grouped := make(map[string][]todoistTask)
	for _, task := range tasks {
		name, ok := display[task.ProjectID]
		if !ok {
			continue
		}
		grouped[name] = append(grouped[name], task)
	}

	var b strings.Builder
	for _, want := range order {
		group := grouped[want.Display]
		if len(group) == 0 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].Priority > group[j].Priority
		})

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("*" + want.Display + "*\n")
		for _, task := range group {
			b.WriteString(formatTask(task))
			b.WriteByte('\n')
		}
	}

	if b.Len() == 0 {
		return "No tasks"
	}
	return strings.TrimRight(b.String(), "\n")
}

// priorityTag converts the API priority scale (4 = urgent) to the
// display convention (p1 = urgent). Priority 1 is the unset default and
// renders without a tag.
func priorityTag(p int) string {
	switch p {
	case 4:
		return "[p1]"
	case 3:
		return "[p2]"
	case 2:
		return "[p3]"
	default:
		return ""
	}
}

func formatTask(task todoistTask) string {
	if tag := priorityTag(task.Priority); tag != "" {
		return "• " + tag + " " + task.Content
	}
	return "• " + task.Content
}

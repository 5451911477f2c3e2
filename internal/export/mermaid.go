package export

import (
	"fmt"
	"strings"

	"github.com/softlane/sdlcd/internal/pipeline"
)

// statusStyles maps stage status to a Mermaid classDef.
var statusStyles = map[pipeline.Status]string{
	pipeline.StatusIdle:    "idle",
	pipeline.StatusRunning: "running",
	pipeline.StatusSuccess: "success",
	pipeline.StatusError:   "failed",
}

// GenerateMermaid renders the pipeline as a Mermaid graph LR diagram. Each
// stage is a node colored by its status; the current stage gets a thicker
// border. The fixable stage's side-branch is drawn as a dotted edge to the
// review stage.
func GenerateMermaid(snap pipeline.Snapshot, catalog *pipeline.Catalog) string {
	var sb strings.Builder
	sb.WriteString("graph LR\n")

	for i, st := range snap.Stages {
		label := st.ID
		if st.Status == pipeline.StatusError && st.Error != "" {
			label = fmt.Sprintf("%s<br/>%.40s", st.ID, st.Error)
		}
		sb.WriteString(fmt.Sprintf("  S%d[\"%s\"]:::%s\n", i, label, statusStyles[st.Status]))
	}

	for i := 0; i < len(snap.Stages)-1; i++ {
		sb.WriteString(fmt.Sprintf("  S%d --> S%d\n", i, i+1))
	}

	if fix, ok := catalog.FixableStage(); ok && !catalog.IsTerminal(fix.Order) {
		sb.WriteString(fmt.Sprintf("  S%d -.->|apply fix| S%d\n", fix.Order, fix.Order+1))
	}

	sb.WriteString(fmt.Sprintf("  style S%d stroke-width:3px\n", snap.CurrentIndex))
	sb.WriteString("  classDef idle fill:#eceff1,stroke:#90a4ae\n")
	sb.WriteString("  classDef running fill:#fff8e1,stroke:#ffb300\n")
	sb.WriteString("  classDef success fill:#e8f5e9,stroke:#43a047\n")
	sb.WriteString("  classDef failed fill:#ffebee,stroke:#e53935\n")

	return sb.String()
}

// Package dockermatch implements the Dockerfile↔image match engine: parsing
// a Dockerfile, inspecting a built image, aligning the two, and scoring their
// similarity across a fixed set of facets.
package dockermatch

import (
	"time"

	"github.com/google/uuid"
	digest "github.com/opencontainers/go-digest"
)

// InstructionKind identifies a Dockerfile instruction keyword, or the
// reconstructed equivalent on the image-history side (see ImageFacts.History).
type InstructionKind string

const (
	KindFrom       InstructionKind = "FROM"
	KindRun        InstructionKind = "RUN"
	KindCmd        InstructionKind = "CMD"
	KindEntrypoint InstructionKind = "ENTRYPOINT"
	KindCopy       InstructionKind = "COPY"
	KindAdd        InstructionKind = "ADD"
	KindEnv        InstructionKind = "ENV"
	KindArg        InstructionKind = "ARG"
	KindLabel      InstructionKind = "LABEL"
	KindExpose     InstructionKind = "EXPOSE"
	KindVolume     InstructionKind = "VOLUME"
	KindWorkdir    InstructionKind = "WORKDIR"
	KindUser       InstructionKind = "USER"
	KindStopsignal InstructionKind = "STOPSIGNAL"
	KindShell      InstructionKind = "SHELL"
	KindOther      InstructionKind = "OTHER"
)

// DockerInstruction is a single ordered entry from a Dockerfile.
type DockerInstruction struct {
	Kind       InstructionKind
	Raw        string
	Args       []string
	LineNumber int
}

// NormalizedCommand is the canonical form of any Dockerfile command value or
// image-config command value, produced by Normalize.
//
// ShellCommand follows a truthiness convention: an empty string
// means "no shell command", matching the Python source's `if shell_command:`
// checks rather than a separate presence flag.
type NormalizedCommand struct {
	Executable   string
	Args         []string
	ShellForm    bool
	ShellCommand string
}

// PackageManager identifies the package-manager family a PackageCommand was
// extracted for.
type PackageManager string

const (
	PackageManagerAPT    PackageManager = "apt"
	PackageManagerAptGet PackageManager = "apt-get"
	PackageManagerPip    PackageManager = "pip"
	PackageManagerPip3   PackageManager = "pip3"
	PackageManagerYum    PackageManager = "yum"
	PackageManagerDnf    PackageManager = "dnf"
	PackageManagerApk    PackageManager = "apk"
	PackageManagerNpm    PackageManager = "npm"
	PackageManagerYarn   PackageManager = "yarn"
)

// PackageCommand is a recognized package-manager invocation extracted from a
// shell command by ParsePackageCommand.
type PackageCommand struct {
	Manager            PackageManager
	Verb               string
	Packages           []string
	VersionConstraints map[string]string
}

// ImageConfig is the subset of an image's runtime configuration relevant to
// matching.
type ImageConfig struct {
	Env          map[string]string
	Cmd          []string
	Entrypoint   []string
	WorkingDir   string
	ExposedPorts map[string]struct{}
	Volumes      map[string]struct{}
	Labels       map[string]string
	User         string
}

// HistoryEntry is one entry of an image's build history, oldest first.
type HistoryEntry struct {
	CreatedBy    string // cleaned, per C4's history-cleaning rules
	RawCreatedBy string // retained verbatim for reporting
	CreatedAt    time.Time
	SizeBytes    int64
	EmptyLayer   bool
	CommandType  InstructionKind
}

// ImageFacts is the normalized projection of an inspected image produced by
// the Image Inspector Facade (C4).
type ImageFacts struct {
	ID           string
	Tags         []string
	CreatedAt    time.Time
	SizeBytes    int64
	Architecture string
	OS           string
	Config       ImageConfig
	History      []HistoryEntry
	RootFSLayers []digest.Digest
}

// MatchType classifies how confidently a LayerMatch paired an instruction
// with a history entry.
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchPartial MatchType = "partial"
	MatchNone    MatchType = "none"
)

// LayerMatchDetails carries the component scores behind a LayerMatch.
type LayerMatchDetails struct {
	SequenceScore float64 `json:"sequenceScore"`
	CommandScore  float64 `json:"commandScore"`
	Reason        string  `json:"reason,omitempty"`
}

// LayerMatch is an alignment between one layer-creating Dockerfile
// instruction and one image-history entry (or none), produced by the Layer
// Aligner (C5).
type LayerMatch struct {
	InstructionIndex int               `json:"instructionIndex"`
	HistoryIndex     *int              `json:"historyIndex"`
	Score            float64           `json:"score"`
	Type             MatchType         `json:"type"`
	Details          LayerMatchDetails `json:"details"`
}

// FacetName identifies one of the independent comparison dimensions a
// MatchReport scores.
type FacetName string

const (
	FacetBaseImage   FacetName = "baseImage"
	FacetLayers      FacetName = "layers"
	FacetMetadata    FacetName = "metadata"
	FacetContext     FacetName = "context"
	FacetEnvironment FacetName = "environment"
	FacetPorts       FacetName = "ports"
	FacetVolumes     FacetName = "volumes"
	FacetWorkdir     FacetName = "workdir"
	FacetPlatform    FacetName = "platform"
	FacetCommands    FacetName = "commands"
	FacetLabels      FacetName = "labels"
)

// FacetScore is the outcome of one facet scorer.
type FacetScore struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// Quality is the human-facing band an overall score falls into.
type Quality string

const (
	QualityExcellent Quality = "Excellent"
	QualityGood      Quality = "Good"
	QualityFair      Quality = "Fair"
	QualityPoor      Quality = "Poor"
	QualityVeryPoor  Quality = "Very Poor"
)

// MatchReport is the final output of a match() call.
type MatchReport struct {
	ID              uuid.UUID            `json:"id"`
	Overall         float64              `json:"overall"`
	Quality         Quality              `json:"quality"`
	Facets          map[FacetName]FacetScore `json:"facets"`
	LayerMatches    []LayerMatch         `json:"layerMatches"`
	MismatchReasons []string             `json:"mismatchReasons"`
}

// DockerfileAnalysis is a derived, static view over a parsed instruction
// stream, analogous to a DockerfileAnalyzer projection.
type DockerfileAnalysis struct {
	BaseImage       string
	Stages          []string
	PackageCommands []DockerInstruction
	CopyCommands    []DockerInstruction
	AllInstructions []DockerInstruction
	Metadata        map[string]string
}

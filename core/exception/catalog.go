package exception

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/goto/pipewatch/core/identity"
	"github.com/goto/pipewatch/internal/errors"
)

const EntityCatalog = "catalog"

//go:embed catalog.yaml
var defaultCatalog []byte

type Catalog struct {
	definitions map[Code]*Definition
	sops        map[Code]*SOP
}

func NewCatalog(definitions []*Definition, sops []*SOP) (*Catalog, error) {
	me := errors.NewMultiError("error validating exception catalog")

	c := &Catalog{
		definitions: make(map[Code]*Definition, len(definitions)),
		sops:        make(map[Code]*SOP, len(sops)),
	}
	for _, def := range definitions {
		if def.Code == "" {
			me.Append(errors.InvalidArgument(EntityCatalog, "exception definition without code"))
			continue
		}
		if _, ok := c.definitions[def.Code]; ok {
			me.Append(errors.InvalidArgument(EntityCatalog, "duplicate exception definition "+def.Code.String()))
			continue
		}
		c.definitions[def.Code] = def
	}

	for _, sop := range sops {
		if _, ok := c.definitions[sop.Code]; !ok {
			me.Append(errors.InvalidArgument(EntityCatalog, fmt.Sprintf("sop [%s] references unknown exception code", sop.Code)))
			continue
		}
		if len(sop.PermissionsRequired) == 0 {
			me.Append(errors.InvalidArgument(EntityCatalog, fmt.Sprintf("sop [%s] requires at least one role", sop.Code)))
			continue
		}
		c.sops[sop.Code] = sop
	}

	if err := me.ToErr(); err != nil {
		return nil, err
	}
	return c, nil
}

func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(defaultCatalog)
}

// LoadCatalogFile reads a catalog from path, an empty path loads the embedded default
func LoadCatalogFile(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog()
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.InternalError(EntityCatalog, "unable to read catalog file "+path, err)
	}
	return LoadCatalog(content)
}

func (c *Catalog) Definition(code Code) (*Definition, error) {
	def, ok := c.definitions[code]
	if !ok {
		return nil, errors.NotFound(EntityException, "no exception definition for code "+code.String())
	}
	return def, nil
}

func (c *Catalog) SOP(code Code) (*SOP, error) {
	sop, ok := c.sops[code]
	if !ok {
		return nil, errors.NotFound(EntitySOP, "no sop defined for code "+code.String())
	}
	return sop, nil
}

func (c *Catalog) Definitions() []*Definition {
	defs := make([]*Definition, 0, len(c.definitions))
	for _, def := range c.definitions {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool {
		return defs[i].Code < defs[j].Code
	})
	return defs
}

type catalogSpec struct {
	Exceptions []definitionSpec `yaml:"exceptions"`
	SOPs       []sopSpec        `yaml:"sops"`
}

type definitionSpec struct {
	Code              string `yaml:"code"`
	Type              string `yaml:"type"`
	Cause             string `yaml:"cause"`
	DetectionPoint    string `yaml:"detection_point"`
	ExampleMessage    string `yaml:"example_message"`
	Severity          string `yaml:"severity"`
	Retryable         bool   `yaml:"retryable"`
	RecommendedAction string `yaml:"recommended_action"`
}

type sopSpec struct {
	Code                string   `yaml:"code"`
	Title               string   `yaml:"title"`
	Preconditions       []string `yaml:"preconditions"`
	Steps               []string `yaml:"steps"`
	PermissionsRequired []string `yaml:"permissions_required"`
	RollbackActions     []string `yaml:"rollback_actions"`
	PostConditions      []string `yaml:"post_conditions"`
}

func LoadCatalog(content []byte) (*Catalog, error) {
	var spec catalogSpec
	if err := yaml.Unmarshal(content, &spec); err != nil {
		return nil, errors.InvalidArgument(EntityCatalog, "unable to parse catalog yaml: "+err.Error())
	}

	me := errors.NewMultiError("error parsing exception catalog")
	definitions := make([]*Definition, 0, len(spec.Exceptions))
	for _, d := range spec.Exceptions {
		excType, err := TypeFrom(d.Type)
		if err != nil {
			me.Append(errors.Wrap(EntityCatalog, "exception "+d.Code, err))
			continue
		}
		severity, err := SeverityFrom(d.Severity)
		if err != nil {
			me.Append(errors.Wrap(EntityCatalog, "exception "+d.Code, err))
			continue
		}
		definitions = append(definitions, &Definition{
			Code:              Code(d.Code),
			Type:              excType,
			Cause:             d.Cause,
			DetectionPoint:    d.DetectionPoint,
			ExampleMessage:    d.ExampleMessage,
			Severity:          severity,
			Retryable:         d.Retryable,
			RecommendedAction: d.RecommendedAction,
		})
	}

	sops := make([]*SOP, 0, len(spec.SOPs))
	for _, s := range spec.SOPs {
		roles := make([]identity.Role, 0, len(s.PermissionsRequired))
		for _, r := range s.PermissionsRequired {
			role, err := identity.RoleFrom(r)
			if err != nil {
				me.Append(errors.Wrap(EntityCatalog, "sop "+s.Code, err))
				continue
			}
			roles = append(roles, role)
		}
		sops = append(sops, &SOP{
			Code:                Code(s.Code),
			Title:               s.Title,
			Preconditions:       s.Preconditions,
			Steps:               s.Steps,
			PermissionsRequired: roles,
			RollbackActions:     s.RollbackActions,
			PostConditions:      s.PostConditions,
		})
	}

	if err := me.ToErr(); err != nil {
		return nil, err
	}
	return NewCatalog(definitions, sops)
}

package configsvc

import (
	"strings"
	"time"

	"netweave/internal/apperr"
	"netweave/internal/models"
	"netweave/internal/notify"
	"netweave/internal/render"
	"netweave/internal/semver"

	"gorm.io/datatypes"
)

// Service is the configuration lifecycle manager: template CRUD plus the
// generate → apply → deployment-status chain.
type Service struct {
	repo  *Repo
	tpl   *render.Renderer
	notif *notify.Dispatcher
}

func NewService(repo *Repo, notif *notify.Dispatcher) *Service {
	return &Service{repo: repo, tpl: render.NewRenderer(), notif: notif}
}

func storeErr(err error) error {
	return apperr.Wrap(apperr.Unavailable, "store unavailable", err)
}

// ── Template CRUD ───────────────────────────────────────────

type VariableInput struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Required        bool     `json:"required"`
	DefaultValue    *string  `json:"defaultValue"`
	DataType        string   `json:"dataType"`
	ValidationRegex string   `json:"validationRegex"`
	Options         []string `json:"options"`
	Scope           string   `json:"scope"`
	Position        int      `json:"position"`
}

type TemplateInput struct {
	Name              string          `json:"name"`
	Vendor            string          `json:"vendor"`
	DeviceModel       string          `json:"model"`
	EquipmentCategory string          `json:"equipmentCategory"`
	ConfigType        string          `json:"configType"`
	Version           string          `json:"version"`
	SourceType        string          `json:"configSourceType"`
	Body              string          `json:"body"`
	FileRef           string          `json:"fileRef"`
	Variables         []VariableInput `json:"variables"`
}

func (s *Service) buildTemplate(owner string, in TemplateInput, into *models.ConfigurationTemplate) error {
	if strings.TrimSpace(in.Name) == "" {
		return apperr.E(apperr.Validation, "template name required")
	}
	src := in.SourceType
	if src == "" {
		src = models.SourceTemplate
	}
	switch src {
	case models.SourceTemplate:
		if in.FileRef != "" {
			return apperr.E(apperr.Validation, "template-sourced templates cannot carry a file reference")
		}
	case models.SourceFile:
		if in.FileRef == "" {
			return apperr.E(apperr.Validation, "file-sourced templates need a file reference")
		}
		if in.Body != "" {
			return apperr.E(apperr.Validation, "file-sourced templates cannot carry a body")
		}
	default:
		return apperr.E(apperr.Validation, "configSourceType must be %q or %q", models.SourceTemplate, models.SourceFile)
	}

	version := in.Version
	if version == "" {
		version = semver.Initial
	}
	if _, err := semver.Parse(version); err != nil {
		return apperr.E(apperr.Validation, "invalid template version %q", version)
	}

	vars := make([]models.TemplateVariable, 0, len(in.Variables))
	seen := map[string]struct{}{}
	declared := make([]string, 0, len(in.Variables))
	for i, v := range in.Variables {
		name := strings.TrimSpace(v.Name)
		if name == "" {
			return apperr.E(apperr.Validation, "variable #%d has no name", i+1)
		}
		if _, dup := seen[name]; dup {
			return apperr.E(apperr.Validation, "duplicate variable %q", name)
		}
		seen[name] = struct{}{}
		declared = append(declared, name)
		if !validDataType(v.DataType) {
			return apperr.E(apperr.Validation, "variable %q: unknown data type %q", name, v.DataType)
		}
		pos := v.Position
		if pos == 0 {
			pos = (i + 1) * 10
		}
		def := models.TemplateVariable{
			Name:            name,
			Description:     v.Description,
			Required:        v.Required,
			DefaultValue:    v.DefaultValue,
			DataType:        v.DataType,
			ValidationRegex: v.ValidationRegex,
			Options:         datatypes.NewJSONSlice(v.Options),
			Scope:           v.Scope,
			Position:        pos,
		}
		if v.DefaultValue != nil {
			norm, err := validateValue(def, *v.DefaultValue)
			if err != nil {
				return apperr.E(apperr.Validation, "default for %v", err)
			}
			def.DefaultValue = &norm
		}
		vars = append(vars, def)
	}

	// Every placeholder in the body must be a declared variable; unused
	// declarations are fine.
	if src == models.SourceTemplate {
		if missing := s.tpl.Undeclared(in.Body, declared); len(missing) > 0 {
			return apperr.E(apperr.Validation, "undeclared placeholders in body: %s", strings.Join(missing, ", "))
		}
	}

	into.OwnerID = owner
	into.Name = in.Name
	into.Vendor = in.Vendor
	into.DeviceModel = in.DeviceModel
	into.EquipmentCategory = in.EquipmentCategory
	into.ConfigType = in.ConfigType
	into.Version = version
	into.SourceType = src
	into.Body = in.Body
	into.FileRef = in.FileRef
	into.Variables = vars
	return nil
}

func (s *Service) CreateTemplate(owner string, in TemplateInput) (*models.ConfigurationTemplate, error) {
	var t models.ConfigurationTemplate
	if err := s.buildTemplate(owner, in, &t); err != nil {
		return nil, err
	}
	if err := s.repo.CreateTemplate(&t); err != nil {
		if IsDuplicate(err) {
			return nil, apperr.E(apperr.Conflict, "template %q already exists", t.Name)
		}
		return nil, storeErr(err)
	}
	return &t, nil
}

func (s *Service) UpdateTemplate(owner string, id uint, in TemplateInput) (*models.ConfigurationTemplate, error) {
	t, err := s.repo.GetTemplate(id, owner)
	if err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "template %d not found", id)
		}
		return nil, storeErr(err)
	}
	if err := s.buildTemplate(owner, in, t); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTemplate(t); err != nil {
		if IsDuplicate(err) {
			return nil, apperr.E(apperr.Conflict, "template %q already exists", t.Name)
		}
		return nil, storeErr(err)
	}
	return t, nil
}

// GetTemplate returns the template with its deployments projection rebuilt
// from the standalone collection.
func (s *Service) GetTemplate(owner string, id uint) (*models.ConfigurationTemplate, error) {
	t, err := s.repo.GetTemplate(id, owner)
	if err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "template %d not found", id)
		}
		return nil, storeErr(err)
	}
	deps, err := s.repo.DeploymentsByTemplate(id)
	if err != nil {
		return nil, storeErr(err)
	}
	t.Deployments = deps
	return t, nil
}

func (s *Service) ListTemplates(owner string) ([]models.ConfigurationTemplate, error) {
	ts, err := s.repo.ListTemplates(owner)
	if err != nil {
		return nil, storeErr(err)
	}
	return ts, nil
}

// DeleteTemplate refuses to remove a template that still has generated
// configurations or deployments.
func (s *Service) DeleteTemplate(owner string, id uint) error {
	if _, err := s.repo.GetTemplate(id, owner); err != nil {
		if IsNotFound(err) {
			return apperr.E(apperr.NotFound, "template %d not found", id)
		}
		return storeErr(err)
	}
	n, err := s.repo.DependentCount(id)
	if err != nil {
		return storeErr(err)
	}
	if n > 0 {
		return apperr.E(apperr.Conflict, "template %d has %d dependent configurations/deployments", id, n)
	}
	if err := s.repo.DeleteTemplate(id); err != nil {
		return storeErr(err)
	}
	return nil
}

// ── Generate / Regenerate ───────────────────────────────────

type GenerateInput struct {
	DesignID       uint              `json:"designId"`
	EquipmentID    string            `json:"equipmentId"`
	ConfigType     string            `json:"configType"`
	VariableValues map[string]string `json:"variableValues"`
}

// resolveValues normalizes overrides against the declarations and checks
// required coverage. Returned values hold override-or-default per declared
// variable (empty string for unresolved optionals); defaults are returned
// separately for the renderer fallback chain.
func resolveValues(t *models.ConfigurationTemplate, overrides map[string]string) (values, defaults map[string]string, err error) {
	byName := make(map[string]models.TemplateVariable, len(t.Variables))
	for _, v := range t.Variables {
		byName[v.Name] = v
	}
	for name := range overrides {
		if _, ok := byName[name]; !ok {
			return nil, nil, apperr.E(apperr.Validation, "unknown variable %q", name)
		}
	}

	values = make(map[string]string, len(t.Variables))
	defaults = make(map[string]string)
	var missing []string
	for _, def := range t.Variables {
		if def.DefaultValue != nil {
			defaults[def.Name] = *def.DefaultValue
		}
		if raw, ok := overrides[def.Name]; ok {
			norm, verr := validateValue(def, raw)
			if verr != nil {
				return nil, nil, apperr.E(apperr.Validation, "%v", verr)
			}
			values[def.Name] = norm
			continue
		}
		if def.DefaultValue != nil {
			values[def.Name] = *def.DefaultValue
			continue
		}
		if def.Required {
			missing = append(missing, def.Name)
			continue
		}
		values[def.Name] = ""
	}
	if len(missing) > 0 {
		return nil, nil, apperr.E(apperr.Validation, "required variables unresolved: %s", strings.Join(missing, ", "))
	}
	return values, defaults, nil
}

// Generate renders a template against a design/equipment target and persists
// the result as a new, not-yet-applied GeneratedConfiguration plus a pending
// Deployment for the target device.
func (s *Service) Generate(caller string, templateID uint, in GenerateInput) (*models.GeneratedConfiguration, error) {
	t, err := s.repo.GetTemplate(templateID, caller)
	if err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "template %d not found", templateID)
		}
		return nil, storeErr(err)
	}
	if t.SourceType != models.SourceTemplate {
		return nil, apperr.E(apperr.Validation, "template %d is file-sourced and cannot be rendered", templateID)
	}
	if in.DesignID != 0 {
		ok, err := s.repo.HasDesign(in.DesignID, caller)
		if err != nil {
			return nil, storeErr(err)
		}
		if !ok {
			return nil, apperr.E(apperr.NotFound, "design %d not found", in.DesignID)
		}
	}
	if strings.TrimSpace(in.EquipmentID) == "" {
		return nil, apperr.E(apperr.Validation, "equipmentId required")
	}

	values, defaults, err := resolveValues(t, in.VariableValues)
	if err != nil {
		return nil, err
	}
	rendered := s.tpl.Render(t.Body, values, defaults)

	configType := in.ConfigType
	if configType == "" {
		configType = t.ConfigType
	}
	c := &models.GeneratedConfiguration{
		TemplateID:     t.ID,
		DesignID:       in.DesignID,
		EquipmentID:    in.EquipmentID,
		ConfigType:     configType,
		OwnerID:        caller,
		VariableValues: datatypes.NewJSONType(values),
		Configuration:  rendered,
	}
	if err := s.repo.CreateConfig(c); err != nil {
		return nil, storeErr(err)
	}
	dep := &models.Deployment{
		TemplateID:     t.ID,
		DeviceID:       in.EquipmentID,
		DeployedBy:     caller,
		Status:         models.DeployPending,
		Variables:      datatypes.NewJSONType(values),
		RenderedConfig: rendered,
	}
	if err := s.repo.CreateDeployment(dep); err != nil {
		return nil, storeErr(err)
	}
	return c, nil
}

// Regenerate re-renders an existing configuration with new overrides merged
// over the stored values. History is never mutated: the result is a fresh
// record pointing back at the original via parentConfig.
func (s *Service) Regenerate(caller string, configID uint, overrides map[string]string) (*models.GeneratedConfiguration, error) {
	prior, err := s.repo.GetConfig(configID)
	if err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "configuration %d not found", configID)
		}
		return nil, storeErr(err)
	}
	if prior.OwnerID != caller {
		return nil, apperr.E(apperr.Unauthorized, "configuration %d belongs to another user", configID)
	}
	t, err := s.repo.GetTemplate(prior.TemplateID, caller)
	if err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "template %d no longer exists", prior.TemplateID)
		}
		return nil, storeErr(err)
	}

	merged := map[string]string{}
	for k, v := range prior.VariableValues.Data() {
		// Stored values carry "" for optionals that were never supplied.
		// Those are resolver output, not caller input; re-validating them
		// as overrides would reject typed optionals.
		if v == "" {
			continue
		}
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	// Values carried over from an older template revision may reference
	// variables that no longer exist; drop them rather than reject.
	byName := map[string]struct{}{}
	for _, v := range t.Variables {
		byName[v.Name] = struct{}{}
	}
	for k := range merged {
		if _, ok := byName[k]; !ok {
			if _, overridden := overrides[k]; overridden {
				return nil, apperr.E(apperr.Validation, "unknown variable %q", k)
			}
			delete(merged, k)
		}
	}

	values, defaults, err := resolveValues(t, merged)
	if err != nil {
		return nil, err
	}
	rendered := s.tpl.Render(t.Body, values, defaults)

	parentID := prior.ID
	next := &models.GeneratedConfiguration{
		TemplateID:     t.ID,
		DesignID:       prior.DesignID,
		EquipmentID:    prior.EquipmentID,
		ConfigType:     prior.ConfigType,
		OwnerID:        caller,
		VariableValues: datatypes.NewJSONType(values),
		Configuration:  rendered,
		ParentConfigID: &parentID,
	}
	if err := s.repo.CreateConfig(next); err != nil {
		return nil, storeErr(err)
	}
	return next, nil
}

// ── Apply / Delete ──────────────────────────────────────────

// Apply is one-way and idempotent: the first call stamps appliedAt, repeat
// calls leave it untouched. Notes are overwritten on every call that carries
// them.
func (s *Service) Apply(caller string, configID uint, notes string) (*models.GeneratedConfiguration, error) {
	c, err := s.repo.GetConfig(configID)
	if err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "configuration %d not found", configID)
		}
		return nil, storeErr(err)
	}
	if c.OwnerID != caller {
		return nil, apperr.E(apperr.Unauthorized, "configuration %d belongs to another user", configID)
	}

	flipped, err := s.repo.MarkApplied(configID, time.Now().UTC())
	if err != nil {
		return nil, storeErr(err)
	}
	if notes != "" {
		if err := s.repo.SetConfigNotes(configID, notes); err != nil {
			return nil, storeErr(err)
		}
	}
	c, err = s.repo.GetConfig(configID)
	if err != nil {
		return nil, storeErr(err)
	}
	if flipped {
		s.notif.Publish(notify.EventConfigApplied, caller, map[string]any{
			"configId":   c.ID,
			"templateId": c.TemplateID,
			"designId":   c.DesignID,
		})
	}
	return c, nil
}

// DeleteConfig removes a not-yet-applied configuration. Applied records are
// immutable and deletion returns Conflict, including when a concurrent Apply
// wins the race.
func (s *Service) DeleteConfig(caller string, configID uint) error {
	c, err := s.repo.GetConfig(configID)
	if err != nil {
		if IsNotFound(err) {
			return apperr.E(apperr.NotFound, "configuration %d not found", configID)
		}
		return storeErr(err)
	}
	if c.OwnerID != caller {
		return apperr.E(apperr.Unauthorized, "configuration %d belongs to another user", configID)
	}
	if c.IsApplied {
		return apperr.E(apperr.Conflict, "configuration %d is applied and cannot be deleted", configID)
	}
	deleted, err := s.repo.DeleteConfigIfNotApplied(configID)
	if err != nil {
		return storeErr(err)
	}
	if !deleted {
		// Lost the race: either applied meanwhile (Conflict) or already gone.
		cur, err := s.repo.GetConfig(configID)
		if err != nil {
			if IsNotFound(err) {
				return nil
			}
			return storeErr(err)
		}
		if cur.IsApplied {
			return apperr.E(apperr.Conflict, "configuration %d is applied and cannot be deleted", configID)
		}
		return apperr.E(apperr.Conflict, "configuration %d could not be deleted", configID)
	}
	return nil
}

func (s *Service) GetConfig(caller string, configID uint) (*models.GeneratedConfiguration, error) {
	c, err := s.repo.GetConfig(configID)
	if err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "configuration %d not found", configID)
		}
		return nil, storeErr(err)
	}
	if c.OwnerID != caller {
		return nil, apperr.E(apperr.NotFound, "configuration %d not found", configID)
	}
	return c, nil
}

func (s *Service) ListConfigs(caller string, designID, templateID uint) ([]models.GeneratedConfiguration, error) {
	out, err := s.repo.ListConfigs(ConfigFilter{Owner: caller, DesignID: designID, TemplateID: templateID})
	if err != nil {
		return nil, storeErr(err)
	}
	return out, nil
}

// ── Deployment status ───────────────────────────────────────

// UpdateDeploymentStatus overwrites the status unconditionally; the
// deployment lifecycle is externally driven and intentionally permissive
// (any status → any status). Only enum membership is checked.
func (s *Service) UpdateDeploymentStatus(caller string, templateID, deploymentID uint, status, notes string) (*models.Deployment, error) {
	if !models.ValidDeploymentStatus(status) {
		return nil, apperr.E(apperr.Validation, "invalid deployment status %q", status)
	}
	if _, err := s.repo.GetTemplate(templateID, caller); err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "template %d not found", templateID)
		}
		return nil, storeErr(err)
	}
	d, err := s.repo.GetDeployment(templateID, deploymentID)
	if err != nil {
		if IsNotFound(err) {
			return nil, apperr.E(apperr.NotFound, "deployment %d not found", deploymentID)
		}
		return nil, storeErr(err)
	}
	d.Status = status
	if notes != "" {
		if d.Notes != "" {
			d.Notes = d.Notes + "\n" + notes
		} else {
			d.Notes = notes
		}
	}
	if err := s.repo.SaveDeployment(d); err != nil {
		return nil, storeErr(err)
	}
	s.notif.Publish(notify.EventDeploymentStatus, caller, map[string]any{
		"templateId":   templateID,
		"deploymentId": d.ID,
		"status":       d.Status,
	})
	return d, nil
}

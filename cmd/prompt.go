package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/ethpandaops/querycat/pkg/resolver"
)

// ErrAborted is returned when the user interrupts a prompt
var ErrAborted = errors.New("prompt aborted")

// prompter asks the user for a single parameter value
type prompter interface {
	Input(ctx context.Context, param resolver.Parameter) (string, error)
}

type surveyPrompter struct{}

func (surveyPrompter) Input(ctx context.Context, param resolver.Parameter) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var out string
	prompt := &survey.Input{
		Message: fmt.Sprintf("%s (%s):", param.Name, param.Type),
		Help:    param.Description,
	}

	if err := survey.AskOne(prompt, &out, survey.WithValidator(survey.Required)); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return "", ErrAborted
		}
		return "", err
	}

	return out, nil
}

// promptMissing asks for every named parameter and stores the answers in overrides
func promptMissing(ctx context.Context, p prompter, plan []resolver.Parameter, missing []string, overrides map[string]interface{}) error {
	byName := make(map[string]resolver.Parameter, len(plan))
	for _, param := range plan {
		byName[param.Name] = param
	}

	for _, name := range missing {
		param, ok := byName[name]
		if !ok {
			continue
		}

		value, err := p.Input(ctx, param)
		if err != nil {
			return err
		}
		overrides[name] = value
	}

	return nil
}

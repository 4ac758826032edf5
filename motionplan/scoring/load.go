package scoring

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"go.viam.com/xdwa/logging"
	"go.viam.com/xdwa/registry"
)

// Load constructs and initializes the named score functions in order. A function that cannot be
// found, configured, built or initialized is logged and skipped; the returned error lists every
// such failure and does not stop the planner from running with the rest.
func Load(
	ctx context.Context,
	names []string,
	attributes map[string]registry.AttributeMap,
	scoringCtx Context,
	logger logging.Logger,
) ([]ScoreFunction, error) {
	var (
		loaded []ScoreFunction
		errs   error
	)
	for _, name := range names {
		logger.Infof("loading score function %s", name)
		fn, err := loadOne(ctx, name, attributes[name], scoringCtx, logger)
		if err != nil {
			logger.Errorw("could not load score function", "name", name, "error", err)
			errs = multierr.Append(errs, err)
			continue
		}
		loaded = append(loaded, fn)
	}
	return loaded, errs
}

func loadOne(
	ctx context.Context,
	name string,
	attrs registry.AttributeMap,
	scoringCtx Context,
	logger logging.Logger,
) (ScoreFunction, error) {
	reg := registry.ScoreFunctionLookup(name)
	if reg == nil {
		return nil, registry.NewScoreFunctionNotFoundError(name)
	}

	var conf interface{}
	if reg.AttributeMapConverter != nil {
		var err error
		conf, err = reg.AttributeMapConverter(attrs)
		if err != nil {
			return nil, errors.Wrapf(err, "converting attributes of %s", name)
		}
	}

	created, err := reg.Constructor(ctx, conf, logger.Sublogger(name))
	if err != nil {
		return nil, errors.Wrapf(err, "constructing %s", name)
	}
	fn, ok := created.(ScoreFunction)
	if !ok {
		return nil, errors.Errorf("%s constructor returned %T, not a score function", name, created)
	}
	if err := fn.Initialize(scoringCtx); err != nil {
		return nil, errors.Wrapf(err, "initializing %s", name)
	}
	return fn, nil
}

package service

import (
	"fmt"

	"github.com/izpodvypodvert/todoapi/internal/domain"
)

func misregistered(entity string, repo any) error {
	return domain.NewDomainError(domain.ErrCodeMisconfigured,
		fmt.Sprintf("repository registered for entity %q has unexpected type %T", entity, repo))
}

package convertor

import (
	"transcode-orchestrator/ddd/domain/entity"
	"transcode-orchestrator/ddd/infrastructure/database/po"
)

// RunnerConvertor runner 转换器
type RunnerConvertor struct{}

// NewRunnerConvertor 创建 runner 转换器
func NewRunnerConvertor() *RunnerConvertor {
	return &RunnerConvertor{}
}

// EntityToPO 实体转PO
func (c *RunnerConvertor) EntityToPO(r *entity.Runner) *po.RunnerPO {
	if r == nil {
		return nil
	}
	return &po.RunnerPO{
		RunnerUUID:    r.RunnerUUID(),
		Token:         r.Token(),
		Name:          r.Name(),
		Description:   r.Description(),
		IP:            r.IP(),
		LastContactAt: r.LastContactAt(),
		CreatedAt:     r.CreatedAt(),
		UpdatedAt:     r.UpdatedAt(),
	}
}

// POToEntity PO转实体
func (c *RunnerConvertor) POToEntity(p *po.RunnerPO) *entity.Runner {
	if p == nil {
		return nil
	}
	return entity.RestoreRunner(p.RunnerUUID, p.Token, p.Name, p.Description, p.IP, p.LastContactAt, p.CreatedAt, p.UpdatedAt)
}

// POListToEntityList 批量转换
func (c *RunnerConvertor) POListToEntityList(list []*po.RunnerPO) []*entity.Runner {
	runners := make([]*entity.Runner, 0, len(list))
	for _, p := range list {
		runners = append(runners, c.POToEntity(p))
	}
	return runners
}

// RegistrationTokenToPO 注册令牌转PO
func (c *RunnerConvertor) RegistrationTokenToPO(t *entity.RegistrationToken) *po.RegistrationTokenPO {
	return &po.RegistrationTokenPO{Token: t.Token(), CreatedAt: t.CreatedAt()}
}

// POToRegistrationToken PO转注册令牌
func (c *RunnerConvertor) POToRegistrationToken(p *po.RegistrationTokenPO) *entity.RegistrationToken {
	if p == nil {
		return nil
	}
	return entity.RestoreRegistrationToken(p.Token, p.CreatedAt)
}

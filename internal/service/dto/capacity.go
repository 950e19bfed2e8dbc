package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Capacity 接受数字或数字字符串，小数部分截断。
// 无法识别的值解析为 0，由调用方替换成默认容量
type Capacity int

func (c *Capacity) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch v := raw.(type) {
	case nil:
		*c = 0
	case float64:
		*c = capacityFromFloat(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			*c = 0
			return nil
		}
		*c = capacityFromFloat(f)
	case bool:
		*c = 0
	default:
		return fmt.Errorf("max_players 类型无效: %s", data)
	}

	return nil
}

func capacityFromFloat(f float64) Capacity {
	if math.IsNaN(f) || f <= 0 || f > math.MaxInt32 {
		return 0
	}

	return Capacity(math.Trunc(f))
}

package property

import "midici/internal/codec"

// Standard Common Rules for PE property IDs beyond the four always-
// present built-ins (spec.md §12 supplement from original_source).
const (
	PropertyProgramList = "ProgramList"
	PropertyCtrlMapList = "CtrlMapList"
	PropertyAllCtrlList = "AllCtrlList"
	PropertyChCtrlList  = "ChCtrlList"
	PropertyStateList   = "StateList"
	PropertyState       = "State"
)

// ProgramEntry is one row of ProgramList: a preset program, addressed by
// a 3-byte bank-select/program-change triple (bank MSB, bank LSB,
// program number), with optional free-text category and tag labels.
type ProgramEntry struct {
	Title    string
	BankPC   [3]int
	Category []string
	Tags     []string
}

// ProgramList enumerates the device's preset programs.
type ProgramList []ProgramEntry

// EncodeProgramList serializes a ProgramList to its JSON body form.
func EncodeProgramList(list ProgramList) []byte {
	arr := make([]codec.Value, 0, len(list))
	for _, e := range list {
		v := codec.Object()
		v.Set("title", codec.String(e.Title))
		v.Set("bankPC", codec.Array(codec.MustNumber(e.BankPC[0]), codec.MustNumber(e.BankPC[1]), codec.MustNumber(e.BankPC[2])))
		if len(e.Category) > 0 {
			v.Set("category", stringArray(e.Category))
		}
		if len(e.Tags) > 0 {
			v.Set("tags", stringArray(e.Tags))
		}
		arr = append(arr, v)
	}
	return []byte(codec.Serialize(codec.Array(arr...)))
}

// DecodeProgramList parses a ProgramList body.
func DecodeProgramList(body []byte) (ProgramList, error) {
	v, err := codec.Parse(string(body))
	if err != nil {
		return nil, err
	}
	list := make(ProgramList, 0, len(v.Arr))
	for _, item := range v.Arr {
		e := ProgramEntry{}
		if t, ok := item.Get("title"); ok {
			e.Title = t.Str
		}
		if b, ok := item.Get("bankPC"); ok {
			for i := 0; i < len(b.Arr) && i < 3; i++ {
				e.BankPC[i] = int(b.Arr[i].Num)
			}
		}
		if c, ok := item.Get("category"); ok {
			e.Category = decodeStringArray(c)
		}
		if t, ok := item.Get("tags"); ok {
			e.Tags = decodeStringArray(t)
		}
		list = append(list, e)
	}
	return list, nil
}

func stringArray(ss []string) codec.Value {
	arr := make([]codec.Value, 0, len(ss))
	for _, s := range ss {
		arr = append(arr, codec.String(s))
	}
	return codec.Array(arr...)
}

func decodeStringArray(v codec.Value) []string {
	if len(v.Arr) == 0 {
		return nil
	}
	out := make([]string, 0, len(v.Arr))
	for _, e := range v.Arr {
		out = append(out, e.Str)
	}
	return out
}

// CtrlMapEntry is one named controller-mapping profile entry.
type CtrlMapEntry struct {
	Title     string
	CtrlMapID string
}

// CtrlMapList enumerates the device's controller-mapping alternatives.
type CtrlMapList []CtrlMapEntry

// EncodeCtrlMapList serializes a CtrlMapList.
func EncodeCtrlMapList(list CtrlMapList) []byte {
	arr := make([]codec.Value, 0, len(list))
	for _, e := range list {
		v := codec.Object()
		v.Set("title", codec.String(e.Title))
		v.Set("ctrlMapId", codec.String(e.CtrlMapID))
		arr = append(arr, v)
	}
	return []byte(codec.Serialize(codec.Array(arr...)))
}

// DecodeCtrlMapList parses a CtrlMapList body.
func DecodeCtrlMapList(body []byte) (CtrlMapList, error) {
	v, err := codec.Parse(string(body))
	if err != nil {
		return nil, err
	}
	list := make(CtrlMapList, 0, len(v.Arr))
	for _, item := range v.Arr {
		e := CtrlMapEntry{}
		if t, ok := item.Get("title"); ok {
			e.Title = t.Str
		}
		if c, ok := item.Get("ctrlMapId"); ok {
			e.CtrlMapID = c.Str
		}
		list = append(list, e)
	}
	return list, nil
}

// ControlEntry describes one controller: a CC, RPN, NRPN, or similar
// addressable parameter, shared by AllCtrlList and ChCtrlList.
type ControlEntry struct {
	Title        string
	CtrlType     string
	Description  string
	CtrlIndex    []int
	Channel      *int
	Priority     *int
	Default      int
	Transmit     string
	Recognize    string
	NumSigBits   int
	ParamPath    *string
	TypeHint     *string
	CtrlMapID    *string
	StepCount    *int
	MinMax       []int
	DefaultCCMap bool
}

// AllCtrlList enumerates every controller on the device, independent of
// channel.
type AllCtrlList []ControlEntry

// ChCtrlList enumerates the controllers available on one channel.
type ChCtrlList []ControlEntry

func encodeControlEntries(list []ControlEntry) []byte {
	arr := make([]codec.Value, 0, len(list))
	for _, e := range list {
		v := codec.Object()
		v.Set("title", codec.String(e.Title))
		v.Set("ctrlType", codec.String(e.CtrlType))
		if e.Description != "" {
			v.Set("description", codec.String(e.Description))
		}
		idx := make([]codec.Value, 0, len(e.CtrlIndex))
		for _, n := range e.CtrlIndex {
			idx = append(idx, codec.MustNumber(n))
		}
		v.Set("ctrlIndex", codec.Array(idx...))
		if e.Channel != nil {
			v.Set("channel", codec.MustNumber(*e.Channel))
		}
		if e.Priority != nil {
			v.Set("priority", codec.MustNumber(*e.Priority))
		}
		v.Set("default", codec.MustNumber(e.Default))
		if e.Transmit != "" {
			v.Set("transmit", codec.String(e.Transmit))
		}
		if e.Recognize != "" {
			v.Set("recognize", codec.String(e.Recognize))
		}
		v.Set("numSigBits", codec.MustNumber(e.NumSigBits))
		if e.ParamPath != nil {
			v.Set("paramPath", codec.String(*e.ParamPath))
		}
		if e.TypeHint != nil {
			v.Set("typeHint", codec.String(*e.TypeHint))
		}
		if e.CtrlMapID != nil {
			v.Set("ctrlMapId", codec.String(*e.CtrlMapID))
		}
		if e.StepCount != nil {
			v.Set("stepCount", codec.MustNumber(*e.StepCount))
		}
		if len(e.MinMax) > 0 {
			mm := make([]codec.Value, 0, len(e.MinMax))
			for _, n := range e.MinMax {
				mm = append(mm, codec.MustNumber(n))
			}
			v.Set("minMax", codec.Array(mm...))
		}
		if e.DefaultCCMap {
			v.Set("defaultCCMap", codec.Bool(e.DefaultCCMap))
		}
		arr = append(arr, v)
	}
	return []byte(codec.Serialize(codec.Array(arr...)))
}

func decodeControlEntries(body []byte) ([]ControlEntry, error) {
	v, err := codec.Parse(string(body))
	if err != nil {
		return nil, err
	}
	list := make([]ControlEntry, 0, len(v.Arr))
	for _, item := range v.Arr {
		e := ControlEntry{}
		if t, ok := item.Get("title"); ok {
			e.Title = t.Str
		}
		if t, ok := item.Get("ctrlType"); ok {
			e.CtrlType = t.Str
		}
		if d, ok := item.Get("description"); ok {
			e.Description = d.Str
		}
		if idx, ok := item.Get("ctrlIndex"); ok {
			for _, n := range idx.Arr {
				e.CtrlIndex = append(e.CtrlIndex, int(n.Num))
			}
		}
		if c, ok := item.Get("channel"); ok {
			n := int(c.Num)
			e.Channel = &n
		}
		if p, ok := item.Get("priority"); ok {
			n := int(p.Num)
			e.Priority = &n
		}
		if d, ok := item.Get("default"); ok {
			e.Default = int(d.Num)
		}
		if t, ok := item.Get("transmit"); ok {
			e.Transmit = t.Str
		}
		if r, ok := item.Get("recognize"); ok {
			e.Recognize = r.Str
		}
		if s, ok := item.Get("numSigBits"); ok {
			e.NumSigBits = int(s.Num)
		}
		if p, ok := item.Get("paramPath"); ok {
			s := p.Str
			e.ParamPath = &s
		}
		if th, ok := item.Get("typeHint"); ok {
			s := th.Str
			e.TypeHint = &s
		}
		if cm, ok := item.Get("ctrlMapId"); ok {
			s := cm.Str
			e.CtrlMapID = &s
		}
		if sc, ok := item.Get("stepCount"); ok {
			n := int(sc.Num)
			e.StepCount = &n
		}
		if mm, ok := item.Get("minMax"); ok {
			for _, n := range mm.Arr {
				e.MinMax = append(e.MinMax, int(n.Num))
			}
		}
		if dm, ok := item.Get("defaultCCMap"); ok {
			e.DefaultCCMap = dm.Bool
		}
		list = append(list, e)
	}
	return list, nil
}

// EncodeAllCtrlList serializes an AllCtrlList.
func EncodeAllCtrlList(list AllCtrlList) []byte { return encodeControlEntries(list) }

// DecodeAllCtrlList parses an AllCtrlList body.
func DecodeAllCtrlList(body []byte) (AllCtrlList, error) {
	list, err := decodeControlEntries(body)
	return AllCtrlList(list), err
}

// EncodeChCtrlList serializes a ChCtrlList.
func EncodeChCtrlList(list ChCtrlList) []byte { return encodeControlEntries(list) }

// DecodeChCtrlList parses a ChCtrlList body.
func DecodeChCtrlList(body []byte) (ChCtrlList, error) {
	list, err := decodeControlEntries(body)
	return ChCtrlList(list), err
}

// StateEntry is one named device state snapshot slot.
type StateEntry struct {
	Title       string
	StateID     string
	StateRev    string
	Description string
	Timestamp   *int64
	Size        *int
}

// StateList enumerates the device's save/recall state slots.
type StateList []StateEntry

// EncodeStateList serializes a StateList.
func EncodeStateList(list StateList) []byte {
	arr := make([]codec.Value, 0, len(list))
	for _, e := range list {
		v := codec.Object()
		v.Set("title", codec.String(e.Title))
		v.Set("stateId", codec.String(e.StateID))
		if e.StateRev != "" {
			v.Set("stateRev", codec.String(e.StateRev))
		}
		if e.Description != "" {
			v.Set("description", codec.String(e.Description))
		}
		if e.Timestamp != nil {
			v.Set("timestamp", codec.MustNumber(int(*e.Timestamp)))
		}
		if e.Size != nil {
			v.Set("size", codec.MustNumber(*e.Size))
		}
		arr = append(arr, v)
	}
	return []byte(codec.Serialize(codec.Array(arr...)))
}

// DecodeStateList parses a StateList body.
func DecodeStateList(body []byte) (StateList, error) {
	v, err := codec.Parse(string(body))
	if err != nil {
		return nil, err
	}
	list := make(StateList, 0, len(v.Arr))
	for _, item := range v.Arr {
		e := StateEntry{}
		if t, ok := item.Get("title"); ok {
			e.Title = t.Str
		}
		if s, ok := item.Get("stateId"); ok {
			e.StateID = s.Str
		}
		if r, ok := item.Get("stateRev"); ok {
			e.StateRev = r.Str
		}
		if d, ok := item.Get("description"); ok {
			e.Description = d.Str
		}
		if ts, ok := item.Get("timestamp"); ok {
			n := int64(ts.Num)
			e.Timestamp = &n
		}
		if sz, ok := item.Get("size"); ok {
			n := int(sz.Num)
			e.Size = &n
		}
		list = append(list, e)
	}
	return list, nil
}

// State is the current-state resource: its resId selects a StateList
// entry by stateId, and GET/SET body is the opaque saved state bytes, so
// State has no JSON encode/decode of its own beyond the resId routing
// handled by RequestHeader.ResID.

package dwarfinc

// DWARF constants this emitter needs. Kept local rather than imported from
// debug/dwarf because that package does not export the line-number program
// opcodes or abbreviation-declaration encoding primitives a writer needs;
// the values themselves are the same ones debug/dwarf's reader (mirrored in
// jasonk000-go-perf/dwarfx/line.go, vendored in this pack) consumes.

// Line number program standard opcodes (DWARF4 §6.2.5.2).
const (
	lnsCopy             = 0x01
	lnsAdvancePC        = 0x02
	lnsAdvanceLine      = 0x03
	lnsSetFile          = 0x04
	lnsSetColumn        = 0x05
	lnsNegateStmt       = 0x06
	lnsSetBasicBlock    = 0x07
	lnsConstAddPC       = 0x08
	lnsFixedAdvancePC   = 0x09
	lnsSetPrologueEnd   = 0x0a
	lnsSetEpilogueBegin = 0x0b
	lnsSetISA           = 0x0c

	lnsOpcodeBase = 0x0d // one past the last standard opcode
)

// Line number program extended opcodes (DWARF4 §6.2.5.3).
const (
	lneEndSequence      = 0x01
	lneSetAddress       = 0x02
	lneDefineFile       = 0x03
	lneSetDiscriminator = 0x04
)

const lnsExtendedOp = 0x00 // leading zero byte signalling an extended opcode

// Line number program header tuning (DWARF4 §6.2.4), matching the values a
// DWARF4 consumer expects for a minimal, single-CU line program.
const (
	lineVersion              = 4
	lineMinInstructionLength = 1
	lineMaxOpsPerInstruction = 1
	lineDefaultIsStmt        = 1
	lineLineBase             = -5
	lineLineRange            = 14
)

// Abbreviation codes 1-12 (spec.md §4.3 "fixed integers 1-12").
const (
	abbrevCompileUnit       = 1
	abbrevSubprogram        = 2
	abbrevSubprogramRetVoid = 3
	abbrevBaseType          = 4
	abbrevPointerType       = 5
	abbrevStructureType     = 6
	abbrevStructMember      = 7
	abbrevEnumerationType   = 8
	abbrevEnumerator        = 9
	abbrevUnionType         = 10
	abbrevPad1              = 11
	abbrevFormalParameter   = 12
)

// DW_TAG values (only the ones this emitter's abbreviation table declares).
const (
	dwTagFormalParameter  = 0x05
	dwTagCompileUnit      = 0x11
	dwTagStructureType    = 0x13
	dwTagUnionType        = 0x17
	dwTagMember           = 0x0d
	dwTagPointerType      = 0x0f
	dwTagSubprogram       = 0x2e
	dwTagBaseType         = 0x24
	dwTagEnumerationType  = 0x04
	dwTagEnumerator       = 0x28
	dwTagUnspecifiedType  = 0x3b // used as the "pad1" unsupported-type marker DIE
)

// DW_AT values.
const (
	dwAtName          = 0x03
	dwAtByteSize      = 0x0b
	dwAtEncoding      = 0x3e
	dwAtCompDir       = 0x1b
	dwAtLowPC         = 0x11
	dwAtHighPC        = 0x12
	dwAtStmtList      = 0x10
	dwAtProducer      = 0x25
	dwAtLanguage      = 0x13
	dwAtType          = 0x49
	dwAtDataMemberLoc = 0x38
	dwAtConstValue    = 0x1c
	dwAtDeclaration   = 0x3c
)

// dwChildrenYes/No are the abbreviation-declaration "has children" byte
// values (DWARF4 §7.5.3).
const (
	dwChildrenNo  = 0x00
	dwChildrenYes = 0x01
)

// DW_FORM values.
const (
	dwFormAddr   = 0x01
	dwFormData1  = 0x0b
	dwFormData4  = 0x06
	dwFormData8  = 0x07
	dwFormSData  = 0x0d
	dwFormString = 0x08
	dwFormStrp   = 0x0e
	dwFormRef4   = 0x13
	dwFormSecOff = 0x17
	dwFormFlag   = 0x0c
)

// DW_ATE encodings (base-type "encoding" attribute values, spec.md §4.3).
const (
	dwAteAddress  = 0x01
	dwAteBoolean  = 0x02
	dwAteSigned   = 0x05
	dwAteUnsigned = 0x07
)

// DW_LANG placeholder (spec.md §4.5 "language code (DW.LANG.C99 as
// placeholder)").
const dwLangC99 = 0x0c

// dwarfVersion is the DWARF version this emitter produces (spec.md §6).
const dwarfVersion = 4
